package model

// Payload is the tagged union of event bodies. Each variant declares the
// exact set of fields that is serialized to subscribers.
type Payload interface {
	Kind() EventKind
}

// ArmPayload is sent when the panel is armed. Stay is true for home/stay mode.
type ArmPayload struct {
	Stay bool `json:"stay"`
}

type DisarmPayload struct{}

// PowerChangedPayload reports the AC power state after the change.
type PowerChangedPayload struct {
	Status bool `json:"status"`
}

type AlarmPayload struct {
	Zone   int  `json:"zone,omitempty"`
	Status bool `json:"status"`
}

type FirePayload struct {
	Status bool `json:"status"`
}

type BypassPayload struct {
	Zone   int  `json:"zone,omitempty"`
	Status bool `json:"status"`
}

type BootPayload struct{}

// ConfigReceivedPayload holds the key/value pairs of a !CONFIG> response.
type ConfigReceivedPayload struct {
	Settings map[string]string `json:"settings"`
}

type ZoneFaultPayload struct {
	Zone int `json:"zone"`
}

type ZoneRestorePayload struct {
	Zone int `json:"zone"`
}

type LowBatteryPayload struct {
	Status bool `json:"status"`
}

type PanicPayload struct {
	Status bool `json:"status"`
}

type RelayChangedPayload struct {
	Address int `json:"address"`
	Channel int `json:"channel"`
	Value   int `json:"value"`
}

// KeypadMessage is a decoded keypad status frame.
type KeypadMessage struct {
	Raw                string `json:"raw"`
	Ready              bool   `json:"ready"`
	ArmedAway          bool   `json:"armed_away"`
	ArmedHome          bool   `json:"armed_home"`
	BacklightOn        bool   `json:"backlight_on"`
	ProgrammingMode    bool   `json:"programming_mode"`
	Beeps              int    `json:"beeps"`
	ZoneBypassed       bool   `json:"zone_bypassed"`
	ACPower            bool   `json:"ac_power"`
	ChimeOn            bool   `json:"chime_on"`
	AlarmEventOccurred bool   `json:"alarm_event_occurred"`
	AlarmSounding      bool   `json:"alarm_sounding"`
	BatteryLow         bool   `json:"battery_low"`
	EntryDelayOff      bool   `json:"entry_delay_off"`
	FireAlarm          bool   `json:"fire_alarm"`
	CheckZone          bool   `json:"check_zone"`
	PerimeterOnly      bool   `json:"perimeter_only"`
	SystemFault        bool   `json:"system_fault"`
	NumericCode        string `json:"numeric_code"`
	PanelData          string `json:"panel_data"`
	Text               string `json:"text"`
}

// LRRMessage is a long-range radio report.
type LRRMessage struct {
	Raw       string `json:"raw"`
	EventData string `json:"event_data"`
	Partition string `json:"partition"`
	EventType string `json:"event_type"`
}

// RFXMessage is a wireless sensor report.
type RFXMessage struct {
	Raw          string  `json:"raw"`
	SerialNumber string  `json:"serial_number"`
	Value        int     `json:"value"`
	Battery      bool    `json:"battery"`
	Supervision  bool    `json:"supervision"`
	Loop         [4]bool `json:"loop"`
}

// ExpanderMessage is a zone expander or relay module report.
type ExpanderMessage struct {
	Raw     string `json:"raw"`
	Type    string `json:"type"` // "zone" or "relay"
	Address int    `json:"address"`
	Channel int    `json:"channel"`
	Value   int    `json:"value"`
}

func (ArmPayload) Kind() EventKind            { return KindArm }
func (DisarmPayload) Kind() EventKind         { return KindDisarm }
func (PowerChangedPayload) Kind() EventKind   { return KindPowerChanged }
func (AlarmPayload) Kind() EventKind          { return KindAlarm }
func (FirePayload) Kind() EventKind           { return KindFire }
func (BypassPayload) Kind() EventKind         { return KindBypass }
func (BootPayload) Kind() EventKind           { return KindBoot }
func (ConfigReceivedPayload) Kind() EventKind { return KindConfigReceived }
func (ZoneFaultPayload) Kind() EventKind      { return KindZoneFault }
func (ZoneRestorePayload) Kind() EventKind    { return KindZoneRestore }
func (LowBatteryPayload) Kind() EventKind     { return KindLowBattery }
func (PanicPayload) Kind() EventKind          { return KindPanic }
func (RelayChangedPayload) Kind() EventKind   { return KindRelayChanged }
func (KeypadMessage) Kind() EventKind         { return KindMessage }
func (LRRMessage) Kind() EventKind            { return KindLRRMessage }
func (RFXMessage) Kind() EventKind            { return KindRFXMessage }
func (ExpanderMessage) Kind() EventKind       { return KindExpanderMessage }

// EmptyPayload returns the zero-value variant for kind, or nil if kind is
// not part of the enumeration.
func EmptyPayload(kind EventKind) Payload {
	switch kind {
	case KindArm:
		return ArmPayload{}
	case KindDisarm:
		return DisarmPayload{}
	case KindPowerChanged:
		return PowerChangedPayload{}
	case KindAlarm:
		return AlarmPayload{}
	case KindFire:
		return FirePayload{}
	case KindBypass:
		return BypassPayload{}
	case KindBoot:
		return BootPayload{}
	case KindConfigReceived:
		return ConfigReceivedPayload{Settings: map[string]string{}}
	case KindZoneFault:
		return ZoneFaultPayload{}
	case KindZoneRestore:
		return ZoneRestorePayload{}
	case KindLowBattery:
		return LowBatteryPayload{}
	case KindPanic:
		return PanicPayload{}
	case KindRelayChanged:
		return RelayChangedPayload{}
	case KindMessage:
		return KeypadMessage{}
	case KindLRRMessage:
		return LRRMessage{}
	case KindRFXMessage:
		return RFXMessage{}
	case KindExpanderMessage:
		return ExpanderMessage{}
	}
	return nil
}
