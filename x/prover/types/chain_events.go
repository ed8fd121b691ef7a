package types

import (
	"strconv"

	abci "github.com/cometbft/cometbft/abci/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Event is a decoded prover module event. The concrete type is one of
// ProgramUploadedEvent, ProofRequestedEvent or ProofVerifiedEvent.
type Event interface {
	EventType() string
	GetImageID() ImageID
	// ToSDKEvent renders the event for emission by the ledger.
	ToSDKEvent() sdk.Event
}

var (
	_ Event = ProgramUploadedEvent{}
	_ Event = ProofRequestedEvent{}
	_ Event = ProofVerifiedEvent{}
)

// ProgramUploadedEvent is emitted when a program is registered.
type ProgramUploadedEvent struct {
	ImageID     ImageID
	Uploader    string
	ProgramSize int
}

func (e ProgramUploadedEvent) EventType() string   { return EventTypeProgramUploaded }
func (e ProgramUploadedEvent) GetImageID() ImageID { return e.ImageID }

func (e ProgramUploadedEvent) ToSDKEvent() sdk.Event {
	return sdk.NewEvent(
		EventTypeProgramUploaded,
		sdk.NewAttribute(AttributeKeyImageID, e.ImageID.String()),
		sdk.NewAttribute(AttributeKeyUploader, e.Uploader),
		sdk.NewAttribute(AttributeKeyProgramSize, strconv.Itoa(e.ProgramSize)),
	)
}

// ProofRequestedEvent is emitted after the reward of a new request is reserved.
type ProofRequestedEvent struct {
	ImageID   ImageID
	Args      Args
	Reward    sdk.Coin
	Requester string
	Overwrite bool
}

func (e ProofRequestedEvent) EventType() string   { return EventTypeProofRequested }
func (e ProofRequestedEvent) GetImageID() ImageID { return e.ImageID }

func (e ProofRequestedEvent) ToSDKEvent() sdk.Event {
	return sdk.NewEvent(
		EventTypeProofRequested,
		sdk.NewAttribute(AttributeKeyImageID, e.ImageID.String()),
		sdk.NewAttribute(AttributeKeyArgs, e.Args.String()),
		sdk.NewAttribute(AttributeKeyReward, e.Reward.String()),
		sdk.NewAttribute(AttributeKeyRequester, e.Requester),
		sdk.NewAttribute(AttributeKeyOverwrite, strconv.FormatBool(e.Overwrite)),
	)
}

// ProofVerifiedEvent is emitted for every accepted proof. Settled reports
// whether this proof collected a held reward.
type ProofVerifiedEvent struct {
	ImageID  ImageID
	Prover   string
	Segments int
	Settled  bool
	Reward   sdk.Coin
}

func (e ProofVerifiedEvent) EventType() string   { return EventTypeProofVerified }
func (e ProofVerifiedEvent) GetImageID() ImageID { return e.ImageID }

func (e ProofVerifiedEvent) ToSDKEvent() sdk.Event {
	return sdk.NewEvent(
		EventTypeProofVerified,
		sdk.NewAttribute(AttributeKeyImageID, e.ImageID.String()),
		sdk.NewAttribute(AttributeKeyProver, e.Prover),
		sdk.NewAttribute(AttributeKeySegments, strconv.Itoa(e.Segments)),
		sdk.NewAttribute(AttributeKeySettled, strconv.FormatBool(e.Settled)),
		sdk.NewAttribute(AttributeKeyReward, e.Reward.String()),
	)
}

// ParseEvent decodes an ABCI event emitted by the prover module. Events of
// other types return ErrUnknownEvent.
func ParseEvent(ev abci.Event) (Event, error) {
	attrs := make(map[string]string, len(ev.Attributes))
	for _, attr := range ev.Attributes {
		attrs[attr.Key] = attr.Value
	}

	switch ev.Type {
	case EventTypeProgramUploaded:
		id, err := parseImageIDAttr(ev.Type, attrs)
		if err != nil {
			return nil, err
		}
		size, err := strconv.Atoi(attrs[AttributeKeyProgramSize])
		if err != nil {
			return nil, malformed(ev.Type, AttributeKeyProgramSize, err)
		}
		return ProgramUploadedEvent{ImageID: id, Uploader: attrs[AttributeKeyUploader], ProgramSize: size}, nil

	case EventTypeProofRequested:
		id, err := parseImageIDAttr(ev.Type, attrs)
		if err != nil {
			return nil, err
		}
		args, err := ParseArgsJSON(attrs[AttributeKeyArgs])
		if err != nil {
			return nil, malformed(ev.Type, AttributeKeyArgs, err)
		}
		reward, err := sdk.ParseCoinNormalized(attrs[AttributeKeyReward])
		if err != nil {
			return nil, malformed(ev.Type, AttributeKeyReward, err)
		}
		overwrite, _ := strconv.ParseBool(attrs[AttributeKeyOverwrite])
		return ProofRequestedEvent{
			ImageID:   id,
			Args:      args,
			Reward:    reward,
			Requester: attrs[AttributeKeyRequester],
			Overwrite: overwrite,
		}, nil

	case EventTypeProofVerified:
		id, err := parseImageIDAttr(ev.Type, attrs)
		if err != nil {
			return nil, err
		}
		segments, err := strconv.Atoi(attrs[AttributeKeySegments])
		if err != nil {
			return nil, malformed(ev.Type, AttributeKeySegments, err)
		}
		settled, err := strconv.ParseBool(attrs[AttributeKeySettled])
		if err != nil {
			return nil, malformed(ev.Type, AttributeKeySettled, err)
		}
		reward, err := sdk.ParseCoinNormalized(attrs[AttributeKeyReward])
		if err != nil {
			return nil, malformed(ev.Type, AttributeKeyReward, err)
		}
		return ProofVerifiedEvent{
			ImageID:  id,
			Prover:   attrs[AttributeKeyProver],
			Segments: segments,
			Settled:  settled,
			Reward:   reward,
		}, nil

	default:
		return nil, ErrUnknownEvent.Wrap(ev.Type)
	}
}

func parseImageIDAttr(eventType string, attrs map[string]string) (ImageID, error) {
	id, err := ParseImageID(attrs[AttributeKeyImageID])
	if err != nil {
		return ImageID{}, malformed(eventType, AttributeKeyImageID, err)
	}
	return id, nil
}

func malformed(eventType, key string, err error) error {
	return ErrValidationFailed.Wrapf("malformed %s event attribute %s: %s", eventType, key, err)
}
