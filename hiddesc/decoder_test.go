package hiddesc

import (
	"bytes"
	"reflect"
	"testing"
)

// bootKeyboard is the classic boot-protocol keyboard descriptor: modifier
// bits, one reserved constant byte, LED output bits with constant padding,
// and a six-slot key array. Reports are not numbered.
var bootKeyboard = []byte{
	0x05, 0x01, // Usage Page (Generic Desktop)
	0x09, 0x06, // Usage (Keyboard)
	0xA1, 0x01, // Collection (Application)
	0x05, 0x07, //   Usage Page (Keyboard/Keypad)
	0x19, 0xE0, //   Usage Minimum (224)
	0x29, 0xE7, //   Usage Maximum (231)
	0x15, 0x00, //   Logical Minimum (0)
	0x25, 0x01, //   Logical Maximum (1)
	0x75, 0x01, //   Report Size (1)
	0x95, 0x08, //   Report Count (8)
	0x81, 0x02, //   Input (Data,Var,Abs)
	0x95, 0x01, //   Report Count (1)
	0x75, 0x08, //   Report Size (8)
	0x81, 0x01, //   Input (Const)
	0x95, 0x05, //   Report Count (5)
	0x75, 0x01, //   Report Size (1)
	0x05, 0x08, //   Usage Page (LEDs)
	0x19, 0x01, //   Usage Minimum (1)
	0x29, 0x05, //   Usage Maximum (5)
	0x91, 0x02, //   Output (Data,Var,Abs)
	0x95, 0x01, //   Report Count (1)
	0x75, 0x03, //   Report Size (3)
	0x91, 0x01, //   Output (Const)
	0x95, 0x06, //   Report Count (6)
	0x75, 0x08, //   Report Size (8)
	0x15, 0x00, //   Logical Minimum (0)
	0x25, 0x65, //   Logical Maximum (101)
	0x05, 0x07, //   Usage Page (Keyboard/Keypad)
	0x19, 0x00, //   Usage Minimum (0)
	0x29, 0x65, //   Usage Maximum (101)
	0x81, 0x00, //   Input (Data,Array)
	0xC0, // End Collection
}

func TestDecodeBootKeyboard(t *testing.T) {
	dec := NewDecoder(bytes.NewReader(bootKeyboard))
	desc, err := dec.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if len(desc.Collections) != 1 {
		t.Fatalf("expected 1 collection, got %d", len(desc.Collections))
	}
	c := desc.Collections[0]
	if c.Type != CollectionTypeApplication {
		t.Errorf("unexpected collection type: %d", c.Type)
	}
	if c.Usage != NewUsage(0x0001, 0x0006) {
		t.Errorf("unexpected collection usage: %s", c.Usage)
	}

	input := c.Reports[ReportID{Type: ReportTypeInput, ID: 0}]
	if len(input) != 3 {
		t.Fatalf("expected 3 input fields, got %d", len(input))
	}
	if !input[0].HasRange() {
		t.Fatal("modifier field should be a usage range")
	}
	if got := *input[0].UsageRange; got != (UsageRange{Min: NewUsage(0x07, 0xE0), Max: NewUsage(0x07, 0xE7)}) {
		t.Errorf("unexpected modifier range: %+v", got)
	}
	if !input[0].Flags.IsVariable() || input[0].Flags.IsConstant() {
		t.Errorf("unexpected modifier flags: %#x", input[0].Flags)
	}
	if !input[1].Flags.IsConstant() || len(input[1].UsageList) != 0 || input[1].HasRange() {
		t.Errorf("reserved byte should be a constant without usages: %+v", input[1])
	}
	if !input[2].HasRange() || !input[2].Flags.IsArray() {
		t.Errorf("key array field mismatch: %+v", input[2])
	}
	if got := *input[2].UsageRange; got != (UsageRange{Min: NewUsage(0x07, 0x00), Max: NewUsage(0x07, 0x65)}) {
		t.Errorf("unexpected key array range: %+v", got)
	}

	output := c.Reports[ReportID{Type: ReportTypeOutput, ID: 0}]
	if len(output) != 2 {
		t.Fatalf("expected 2 output fields, got %d", len(output))
	}
	if got := *output[0].UsageRange; got != (UsageRange{Min: NewUsage(0x08, 0x01), Max: NewUsage(0x08, 0x05)}) {
		t.Errorf("unexpected LED range: %+v", got)
	}

	lengths := dec.MaxLengths()
	want := ReportLengths{Input: 8, Output: 1, Feature: 0}
	if lengths != want {
		t.Errorf("unexpected report lengths: got %+v, want %+v", lengths, want)
	}
}

func TestDecodeNumberedReports(t *testing.T) {
	raw := []byte{
		0x06, 0x00, 0xFF, // Usage Page (Vendor FF00)
		0x09, 0x01, // Usage (1)
		0xA1, 0x01, // Collection (Application)
		0x85, 0x10, //   Report ID (16)
		0x09, 0x02, //   Usage (2)
		0x75, 0x08, //   Report Size (8)
		0x95, 0x06, //   Report Count (6)
		0x81, 0x02, //   Input (Data,Var,Abs)
		0x85, 0x11, //   Report ID (17)
		0x09, 0x03, //   Usage (3)
		0x95, 0x0F, //   Report Count (15)
		0x91, 0x02, //   Output (Data,Var,Abs)
		0xC0, // End Collection
	}
	dec := NewDecoder(bytes.NewReader(raw))
	desc, err := dec.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if len(desc.Collections) != 1 {
		t.Fatalf("expected 1 collection, got %d", len(desc.Collections))
	}
	c := desc.Collections[0]
	if c.Usage != NewUsage(0xFF00, 0x0001) {
		t.Errorf("unexpected collection usage: %s", c.Usage)
	}
	wantIDs := []ReportID{
		{Type: ReportTypeInput, ID: 16},
		{Type: ReportTypeOutput, ID: 17},
	}
	if got := c.ReportIDs(); !reflect.DeepEqual(got, wantIDs) {
		t.Errorf("unexpected report ids: %v", got)
	}
	input := c.Reports[ReportID{Type: ReportTypeInput, ID: 16}]
	if len(input) != 1 || !reflect.DeepEqual(input[0].UsageList, []Usage{NewUsage(0xFF00, 0x0002)}) {
		t.Errorf("unexpected input fields: %+v", input)
	}

	lengths := dec.MaxLengths()
	want := ReportLengths{Input: 7, Output: 16, Feature: 0}
	if lengths != want {
		t.Errorf("unexpected report lengths: got %+v, want %+v", lengths, want)
	}
}

func TestDecodeNestedCollections(t *testing.T) {
	// A mouse-style descriptor: the physical collection nests inside the
	// application collection, its fields attributed to the top level.
	raw := []byte{
		0x05, 0x01, // Usage Page (Generic Desktop)
		0x09, 0x02, // Usage (Mouse)
		0xA1, 0x01, // Collection (Application)
		0x09, 0x01, //   Usage (Pointer)
		0xA1, 0x00, //   Collection (Physical)
		0x05, 0x09, //     Usage Page (Button)
		0x19, 0x01, //     Usage Minimum (1)
		0x29, 0x03, //     Usage Maximum (3)
		0x75, 0x01, //     Report Size (1)
		0x95, 0x03, //     Report Count (3)
		0x81, 0x02, //     Input (Data,Var,Abs)
		0x95, 0x05, //     Report Count (5)
		0x81, 0x01, //     Input (Const)
		0x05, 0x01, //     Usage Page (Generic Desktop)
		0x09, 0x30, //     Usage (X)
		0x09, 0x31, //     Usage (Y)
		0x75, 0x08, //     Report Size (8)
		0x95, 0x02, //     Report Count (2)
		0x81, 0x06, //     Input (Data,Var,Rel)
		0xC0, //   End Collection
		0xC0, // End Collection
	}
	desc, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(desc.Collections) != 1 {
		t.Fatalf("expected 1 top-level collection, got %d", len(desc.Collections))
	}
	c := desc.Collections[0]
	if c.Usage != NewUsage(0x0001, 0x0002) {
		t.Errorf("unexpected collection usage: %s", c.Usage)
	}
	input := c.Reports[ReportID{Type: ReportTypeInput, ID: 0}]
	if len(input) != 3 {
		t.Fatalf("expected 3 input fields, got %d", len(input))
	}
	if !reflect.DeepEqual(input[2].UsageList, []Usage{NewUsage(0x01, 0x30), NewUsage(0x01, 0x31)}) {
		t.Errorf("unexpected X/Y usages: %+v", input[2].UsageList)
	}
	if !input[2].Flags.IsRelative() {
		t.Errorf("X/Y field should be relative: %#x", input[2].Flags)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"unknown item", []byte{0x00}},
		{"field outside collection", []byte{0x81, 0x02}},
		{"unbalanced end collection", []byte{0xC0}},
		{"unterminated collection", []byte{0x05, 0x01, 0x09, 0x06, 0xA1, 0x01}},
		{"pop empty stack", []byte{0xB4}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode(tc.raw); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
