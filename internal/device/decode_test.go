package device

import (
	"testing"

	"github.com/alfredjeanlab/ad2web/internal/model"
)

// keypadFrame builds a keypad line from a 17-char bitfield.
func keypadFrame(bits, code, text string) string {
	return "[" + bits + "],0" + code + ",[f70000051000000000],\"" + text + "\""
}

const (
	bitsReady    = "10000001100000000" // ready, AC on, chime
	bitsArmedAwy = "01000001100000000"
	bitsArmedHom = "00100001100000000"
	bitsBypassed = "10000011100000000"
	bitsOnBatt   = "10000000100000000" // AC lost
	bitsAlarm    = "01000001101000000"
	bitsLowBatt  = "10000001100100000"
	bitsFire     = "10000001100001000"
)

func kinds(evs []Event) []model.EventKind {
	out := make([]model.EventKind, len(evs))
	for i, ev := range evs {
		out[i] = ev.Kind
	}
	return out
}

func equalKinds(a, b []model.EventKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestKeypad_FirstFrameIsBaseline(t *testing.T) {
	d := NewPanelDecoder()
	evs := d.Decode(keypadFrame(bitsArmedAwy, "08", "ARMED AWAY"))
	if got := kinds(evs); !equalKinds(got, []model.EventKind{model.KindMessage}) {
		t.Fatalf("first frame kinds = %v, want only MESSAGE", got)
	}
	msg := evs[0].Payload.(model.KeypadMessage)
	if !msg.ArmedAway || msg.Ready || !msg.ACPower || !msg.ChimeOn {
		t.Fatalf("unexpected bits decoded: %+v", msg)
	}
	if msg.NumericCode != "008" || msg.Text != "ARMED AWAY" {
		t.Fatalf("code=%q text=%q", msg.NumericCode, msg.Text)
	}
}

func TestKeypad_Transitions(t *testing.T) {
	tests := []struct {
		name  string
		from  string
		to    string
		code  string
		want  []model.EventKind
		check func(t *testing.T, ev Event)
	}{
		{
			name: "arm away",
			from: bitsReady, to: bitsArmedAwy,
			want: []model.EventKind{model.KindArm, model.KindMessage},
			check: func(t *testing.T, ev Event) {
				if ev.Payload.(model.ArmPayload).Stay {
					t.Error("away arm reported as stay")
				}
			},
		},
		{
			name: "arm stay",
			from: bitsReady, to: bitsArmedHom,
			want: []model.EventKind{model.KindArm, model.KindMessage},
			check: func(t *testing.T, ev Event) {
				if !ev.Payload.(model.ArmPayload).Stay {
					t.Error("stay arm reported as away")
				}
			},
		},
		{
			name: "disarm",
			from: bitsArmedAwy, to: bitsReady,
			want: []model.EventKind{model.KindDisarm, model.KindMessage},
		},
		{
			name: "bypass carries zone",
			from: bitsReady, to: bitsBypassed, code: "05",
			want: []model.EventKind{model.KindBypass, model.KindMessage},
			check: func(t *testing.T, ev Event) {
				p := ev.Payload.(model.BypassPayload)
				if !p.Status || p.Zone != 5 {
					t.Errorf("bypass payload = %+v, want zone 5 status true", p)
				}
			},
		},
		{
			name: "bypass cleared has no zone",
			from: bitsBypassed, to: bitsReady, code: "05",
			want: []model.EventKind{model.KindBypass, model.KindMessage},
			check: func(t *testing.T, ev Event) {
				p := ev.Payload.(model.BypassPayload)
				if p.Status || p.Zone != 0 {
					t.Errorf("bypass payload = %+v, want cleared", p)
				}
			},
		},
		{
			name: "ac power lost",
			from: bitsReady, to: bitsOnBatt,
			want: []model.EventKind{model.KindPowerChanged, model.KindMessage},
			check: func(t *testing.T, ev Event) {
				if ev.Payload.(model.PowerChangedPayload).Status {
					t.Error("expected AC power false")
				}
			},
		},
		{
			name: "alarm while armed",
			from: bitsArmedAwy, to: bitsAlarm, code: "03",
			want: []model.EventKind{model.KindAlarm, model.KindMessage},
			check: func(t *testing.T, ev Event) {
				p := ev.Payload.(model.AlarmPayload)
				if !p.Status || p.Zone != 3 {
					t.Errorf("alarm payload = %+v", p)
				}
			},
		},
		{
			name: "fire",
			from: bitsReady, to: bitsFire,
			want: []model.EventKind{model.KindFire, model.KindMessage},
		},
		{
			name: "low battery",
			from: bitsReady, to: bitsLowBatt,
			want: []model.EventKind{model.KindLowBattery, model.KindMessage},
		},
		{
			name: "no change",
			from: bitsReady, to: bitsReady,
			want: []model.EventKind{model.KindMessage},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewPanelDecoder()
			d.Decode(keypadFrame(tt.from, "08", "baseline"))
			code := tt.code
			if code == "" {
				code = "08"
			}
			evs := d.Decode(keypadFrame(tt.to, code, "next"))
			if got := kinds(evs); !equalKinds(got, tt.want) {
				t.Fatalf("kinds = %v, want %v", got, tt.want)
			}
			if tt.check != nil {
				tt.check(t, evs[0])
			}
		})
	}
}

func TestKeypad_Malformed(t *testing.T) {
	d := NewPanelDecoder()
	for _, line := range []string{
		"[1000]",
		"[100],008,[f7],\"short\"",
	} {
		if evs := d.Decode(line); len(evs) != 0 {
			t.Errorf("Decode(%q) = %v, want nothing", line, kinds(evs))
		}
	}
}

func TestLRR(t *testing.T) {
	tests := []struct {
		line       string
		wantPanic  bool
		panicState bool
	}{
		{"!LRR:012,1,CID_1123", true, true},
		{"!LRR:012,1,CID_3121", true, false},
		{"!LRR:012,1,ALARM_PANIC", true, true},
		{"!LRR:012,1,CID_1401", false, false},
		{"!LRR:012,1,ARM_AWAY", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			evs := NewPanelDecoder().Decode(tt.line)
			if len(evs) == 0 || evs[0].Kind != model.KindLRRMessage {
				t.Fatalf("expected LRR_MESSAGE first, got %v", kinds(evs))
			}
			msg := evs[0].Payload.(model.LRRMessage)
			if msg.EventData != "012" || msg.Partition != "1" {
				t.Fatalf("unexpected LRR fields: %+v", msg)
			}
			if !tt.wantPanic {
				if len(evs) != 1 {
					t.Fatalf("unexpected extra events %v", kinds(evs))
				}
				return
			}
			if len(evs) != 2 || evs[1].Kind != model.KindPanic {
				t.Fatalf("expected PANIC, got %v", kinds(evs))
			}
			if got := evs[1].Payload.(model.PanicPayload).Status; got != tt.panicState {
				t.Fatalf("panic status = %v, want %v", got, tt.panicState)
			}
		})
	}
}

func TestRFX(t *testing.T) {
	evs := NewPanelDecoder().Decode("!RFX:0123456,86")
	if len(evs) != 1 || evs[0].Kind != model.KindRFXMessage {
		t.Fatalf("kinds = %v", kinds(evs))
	}
	msg := evs[0].Payload.(model.RFXMessage)
	if msg.SerialNumber != "0123456" || msg.Value != 0x86 {
		t.Fatalf("unexpected RFX: %+v", msg)
	}
	if !msg.Battery || !msg.Supervision {
		t.Errorf("battery/supervision bits not decoded: %+v", msg)
	}
	if msg.Loop != [4]bool{true, false, false, false} {
		t.Errorf("loop = %v", msg.Loop)
	}

	if evs := NewPanelDecoder().Decode("!RFX:0123456,zz"); len(evs) != 0 {
		t.Errorf("bad hex should be ignored, got %v", kinds(evs))
	}
}

func TestExpander_Zone(t *testing.T) {
	d := NewPanelDecoder()
	evs := d.Decode("!EXP:07,01,01")
	if got := kinds(evs); !equalKinds(got, []model.EventKind{model.KindExpanderMessage, model.KindZoneFault}) {
		t.Fatalf("kinds = %v", got)
	}
	if z := evs[1].Payload.(model.ZoneFaultPayload).Zone; z != 9 {
		t.Fatalf("fault zone = %d, want 9", z)
	}

	evs = d.Decode("!EXP:08,01,00")
	if got := kinds(evs); !equalKinds(got, []model.EventKind{model.KindExpanderMessage, model.KindZoneRestore}) {
		t.Fatalf("kinds = %v", got)
	}
	if z := evs[1].Payload.(model.ZoneRestorePayload).Zone; z != 17 {
		t.Fatalf("restore zone = %d, want 17", z)
	}
}

func TestExpander_Relay(t *testing.T) {
	evs := NewPanelDecoder().Decode("!REL:12,02,01")
	if got := kinds(evs); !equalKinds(got, []model.EventKind{model.KindExpanderMessage, model.KindRelayChanged}) {
		t.Fatalf("kinds = %v", got)
	}
	if typ := evs[0].Payload.(model.ExpanderMessage).Type; typ != "relay" {
		t.Fatalf("type = %q", typ)
	}
	p := evs[1].Payload.(model.RelayChangedPayload)
	if p.Address != 12 || p.Channel != 2 || p.Value != 1 {
		t.Fatalf("relay payload = %+v", p)
	}
}

func TestConfigAndBoot(t *testing.T) {
	d := NewPanelDecoder()
	evs := d.Decode("!CONFIG>ADDRESS=18&CONFIGBITS=ff00&MODE=A&bogus")
	if len(evs) != 1 || evs[0].Kind != model.KindConfigReceived {
		t.Fatalf("kinds = %v", kinds(evs))
	}
	s := evs[0].Payload.(model.ConfigReceivedPayload).Settings
	if s["ADDRESS"] != "18" || s["MODE"] != "A" || len(s) != 3 {
		t.Fatalf("settings = %v", s)
	}

	evs = d.Decode("!Ready")
	if len(evs) != 1 || evs[0].Kind != model.KindBoot {
		t.Fatalf("kinds = %v", kinds(evs))
	}

	if evs := d.Decode("!Sending.done"); len(evs) != 0 {
		t.Fatalf("unrecognized line produced %v", kinds(evs))
	}
}
