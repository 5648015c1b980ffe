package mqtt

import "fmt"

// Availability payloads published on Topics.Availability.
const (
	Online  = "online"
	Offline = "offline"
)

// Topics builds the topic names for one robot.
type Topics struct {
	Prefix  string
	RobotID string
}

func (t Topics) base() string {
	return fmt.Sprintf("%s/%s", t.Prefix, t.RobotID)
}

// Set carries control intents to the robot.
func (t Topics) Set() string { return t.base() + "/control/set" }

// Stop carries stop requests to the robot.
func (t Topics) Stop() string { return t.base() + "/control/stop" }

// State carries the robot's latest snapshot, retained.
func (t Topics) State() string { return t.base() + "/control/state" }

// Availability carries Online/Offline, retained, with Offline as the will.
func (t Topics) Availability() string { return t.base() + "/availability" }
