package comms

import (
	"time"

	"github.com/CodedInternet/rescuebot/onboard"
)

// StatePayload is the snapshot pushed to status clients.
type StatePayload struct {
	onboard.ActuatorState
	Seq uint64    `json:"seq"`
	At  time.Time `json:"at"`
}

func NewStatePayload(device onboard.Rover, seq uint64) StatePayload {
	return StatePayload{
		ActuatorState: device.State(),
		Seq:           seq,
		At:            time.Now(),
	}
}
