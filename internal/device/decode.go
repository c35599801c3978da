package device

import (
	"strconv"
	"strings"

	"github.com/alfredjeanlab/ad2web/internal/model"
)

// Line prefixes emitted by AlarmDecoder firmware.
const (
	prefixLRR    = "!LRR:"
	prefixRFX    = "!RFX:"
	prefixEXP    = "!EXP:"
	prefixREL    = "!REL:"
	prefixConfig = "!CONFIG>"
	prefixReady  = "!Ready"
)

// keypadBitsLen is the minimum width of the keypad status bitfield.
const keypadBitsLen = 17

// panelState is the last keypad state seen, used to detect transitions.
type panelState struct {
	armed      bool
	armedHome  bool
	acPower    bool
	alarm      bool
	fire       bool
	bypassed   bool
	batteryLow bool
}

// PanelDecoder decodes the AlarmDecoder line protocol. Keypad frames are
// compared with the previous frame to synthesize named events; the first
// keypad frame only establishes the baseline.
type PanelDecoder struct {
	state *panelState
}

// NewPanelDecoder returns a decoder with no baseline.
func NewPanelDecoder() *PanelDecoder {
	return &PanelDecoder{}
}

// Decode implements Decoder.
func (p *PanelDecoder) Decode(line string) []Event {
	switch {
	case strings.HasPrefix(line, "["):
		return p.decodeKeypad(line)
	case strings.HasPrefix(line, prefixLRR):
		return decodeLRR(line)
	case strings.HasPrefix(line, prefixRFX):
		return decodeRFX(line)
	case strings.HasPrefix(line, prefixEXP):
		return decodeExpander(line, "zone")
	case strings.HasPrefix(line, prefixREL):
		return decodeExpander(line, "relay")
	case strings.HasPrefix(line, prefixConfig):
		return decodeConfig(line)
	case strings.HasPrefix(line, prefixReady):
		return []Event{{Kind: model.KindBoot, Payload: model.BootPayload{}}}
	}
	return nil
}

func (p *PanelDecoder) decodeKeypad(line string) []Event {
	parts := strings.SplitN(line, ",", 4)
	if len(parts) != 4 {
		return nil
	}
	bits := strings.Trim(parts[0], "[]")
	if len(bits) < keypadBitsLen {
		return nil
	}
	bit := func(n int) bool { return bits[n-1] == '1' }
	beeps, _ := strconv.ParseInt(string(bits[5]), 16, 64)

	msg := model.KeypadMessage{
		Raw:                line,
		Ready:              bit(1),
		ArmedAway:          bit(2),
		ArmedHome:          bit(3),
		BacklightOn:        bit(4),
		ProgrammingMode:    bit(5),
		Beeps:              int(beeps),
		ZoneBypassed:       bit(7),
		ACPower:            bit(8),
		ChimeOn:            bit(9),
		AlarmEventOccurred: bit(10),
		AlarmSounding:      bit(11),
		BatteryLow:         bit(12),
		EntryDelayOff:      bit(13),
		FireAlarm:          bit(14),
		CheckZone:          bit(15),
		PerimeterOnly:      bit(16),
		SystemFault:        bit(17),
		NumericCode:        parts[1],
		PanelData:          strings.Trim(parts[2], "[]"),
		Text:               strings.Trim(parts[3], `"`),
	}

	next := &panelState{
		armed:      msg.ArmedAway || msg.ArmedHome,
		armedHome:  msg.ArmedHome,
		acPower:    msg.ACPower,
		alarm:      msg.AlarmSounding,
		fire:       msg.FireAlarm,
		bypassed:   msg.ZoneBypassed,
		batteryLow: msg.BatteryLow,
	}
	prev := p.state
	p.state = next

	var out []Event
	if prev != nil {
		out = transitions(prev, next, zoneFromCode(msg.NumericCode))
	}
	return append(out, Event{Kind: model.KindMessage, Payload: msg})
}

func transitions(prev, next *panelState, zone int) []Event {
	var out []Event
	if prev.armed != next.armed {
		if next.armed {
			out = append(out, Event{Kind: model.KindArm, Payload: model.ArmPayload{Stay: next.armedHome}})
		} else {
			out = append(out, Event{Kind: model.KindDisarm, Payload: model.DisarmPayload{}})
		}
	}
	if prev.acPower != next.acPower {
		out = append(out, Event{Kind: model.KindPowerChanged, Payload: model.PowerChangedPayload{Status: next.acPower}})
	}
	if prev.alarm != next.alarm {
		out = append(out, Event{Kind: model.KindAlarm, Payload: model.AlarmPayload{Zone: zone, Status: next.alarm}})
	}
	if prev.fire != next.fire {
		out = append(out, Event{Kind: model.KindFire, Payload: model.FirePayload{Status: next.fire}})
	}
	if prev.bypassed != next.bypassed {
		p := model.BypassPayload{Status: next.bypassed}
		if next.bypassed {
			p.Zone = zone
		}
		out = append(out, Event{Kind: model.KindBypass, Payload: p})
	}
	if prev.batteryLow != next.batteryLow {
		out = append(out, Event{Kind: model.KindLowBattery, Payload: model.LowBatteryPayload{Status: next.batteryLow}})
	}
	return out
}

// zoneFromCode parses the keypad numeric field; non-zone codes yield 0.
func zoneFromCode(code string) int {
	n, err := strconv.Atoi(strings.TrimSpace(code))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// decodeLRR handles "!LRR:<event_data>,<partition>,<event_type>".
func decodeLRR(line string) []Event {
	fields := strings.Split(strings.TrimPrefix(line, prefixLRR), ",")
	if len(fields) != 3 {
		return nil
	}
	msg := model.LRRMessage{
		Raw:       line,
		EventData: fields[0],
		Partition: fields[1],
		EventType: fields[2],
	}
	out := []Event{{Kind: model.KindLRRMessage, Payload: msg}}
	if status, ok := panicStatus(msg.EventType); ok {
		out = append(out, Event{Kind: model.KindPanic, Payload: model.PanicPayload{Status: status}})
	}
	return out
}

// panicStatus recognizes panic reports: the ALARM_PANIC event type and
// Contact ID codes 120-123 (qualifier 1 = new event, 3 = restore).
func panicStatus(eventType string) (bool, bool) {
	if eventType == "ALARM_PANIC" {
		return true, true
	}
	if !strings.HasPrefix(eventType, "CID_") || len(eventType) != 8 {
		return false, false
	}
	code, err := strconv.Atoi(eventType[5:8])
	if err != nil || code < 120 || code > 123 {
		return false, false
	}
	switch eventType[4] {
	case '1':
		return true, true
	case '3':
		return false, true
	}
	return false, false
}

// decodeRFX handles "!RFX:<serial>,<hex value>".
func decodeRFX(line string) []Event {
	fields := strings.Split(strings.TrimPrefix(line, prefixRFX), ",")
	if len(fields) != 2 {
		return nil
	}
	value, err := strconv.ParseInt(fields[1], 16, 64)
	if err != nil {
		return nil
	}
	v := int(value)
	msg := model.RFXMessage{
		Raw:          line,
		SerialNumber: fields[0],
		Value:        v,
		Battery:      v&0x02 != 0,
		Supervision:  v&0x04 != 0,
		Loop:         [4]bool{v&0x80 != 0, v&0x20 != 0, v&0x10 != 0, v&0x40 != 0},
	}
	return []Event{{Kind: model.KindRFXMessage, Payload: msg}}
}

// decodeExpander handles "!EXP:<addr>,<channel>,<value>" and the relay
// variant "!REL:...".
func decodeExpander(line, typ string) []Event {
	body := line[len(prefixEXP):]
	fields := strings.Split(body, ",")
	if len(fields) != 3 {
		return nil
	}
	var nums [3]int
	for i, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil
		}
		nums[i] = n
	}
	msg := model.ExpanderMessage{Raw: line, Type: typ, Address: nums[0], Channel: nums[1], Value: nums[2]}
	out := []Event{{Kind: model.KindExpanderMessage, Payload: msg}}

	if typ == "relay" {
		return append(out, Event{Kind: model.KindRelayChanged, Payload: model.RelayChangedPayload{
			Address: msg.Address, Channel: msg.Channel, Value: msg.Value,
		}})
	}
	zone := expanderZone(msg.Address, msg.Channel)
	if msg.Value == 1 {
		return append(out, Event{Kind: model.KindZoneFault, Payload: model.ZoneFaultPayload{Zone: zone}})
	}
	return append(out, Event{Kind: model.KindZoneRestore, Payload: model.ZoneRestorePayload{Zone: zone}})
}

// expanderZone maps an Ademco expander address/channel to a zone number.
// Expanders start at address 7 with channels numbered from 1, so the
// first expander zone is 9.
func expanderZone(address, channel int) int {
	idx := address - 7
	return address + channel + idx*7 + 1
}

// decodeConfig handles "!CONFIG>KEY=VALUE&KEY=VALUE".
func decodeConfig(line string) []Event {
	settings := make(map[string]string)
	for _, pair := range strings.Split(strings.TrimPrefix(line, prefixConfig), "&") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			continue
		}
		settings[k] = v
	}
	return []Event{{Kind: model.KindConfigReceived, Payload: model.ConfigReceivedPayload{Settings: settings}}}
}
