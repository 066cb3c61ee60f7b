package hiddesc

import (
	"math/rand"
	"reflect"
	"testing"
)

// TestMergeOrder labels every capability entry with its data index as the
// usage id, randomly splits the index space between button and value lists,
// and verifies the merged bucket comes out in ascending index order with
// nothing lost.
func TestMergeOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 100; trial++ {
		total := 1 + rng.Intn(40)
		var buttons, values []FieldCap
		for i := 0; i < total; i++ {
			fc := FieldCap{
				ReportID:  1,
				DataIndex: uint16(i),
				UsagePage: 0x09,
				Usage:     uint16(i),
			}
			if rng.Intn(2) == 0 {
				buttons = append(buttons, fc)
			} else {
				values = append(values, fc)
			}
		}

		c := FromCapabilities(CapabilityTable{
			UsagePage:      0x01,
			Usage:          0x06,
			CollectionType: CollectionTypeApplication,
			Input:          ReportCaps{Buttons: buttons, Values: values},
		})

		fields := c.Reports[ReportID{Type: ReportTypeInput, ID: 1}]
		if len(fields) != total {
			t.Fatalf("trial %d: expected %d fields, got %d (buttons %d, values %d)",
				trial, total, len(fields), len(buttons), len(values))
		}
		for i, f := range fields {
			want := []Usage{NewUsage(0x09, uint16(i))}
			if !reflect.DeepEqual(f.UsageList, want) {
				t.Fatalf("trial %d: field %d out of order: got %v, want %v", trial, i, f.UsageList, want)
			}
		}
	}
}

func TestFromCapabilitiesRange(t *testing.T) {
	c := FromCapabilities(CapabilityTable{
		UsagePage:      0x01,
		Usage:          0x06,
		CollectionType: CollectionTypeApplication,
		Input: ReportCaps{
			Buttons: []FieldCap{
				{ReportID: 0, DataIndex: 0, BitField: 0x02, UsagePage: 0x07, IsRange: true, UsageMin: 0xE0, UsageMax: 0xE7},
			},
		},
	})
	fields := c.Reports[ReportID{Type: ReportTypeInput, ID: 0}]
	if len(fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(fields))
	}
	f := fields[0]
	if f.UsageList != nil {
		t.Errorf("range field must not carry a usage list: %v", f.UsageList)
	}
	if f.UsageRange == nil || *f.UsageRange != (UsageRange{Min: NewUsage(0x07, 0xE0), Max: NewUsage(0x07, 0xE7)}) {
		t.Errorf("unexpected usage range: %+v", f.UsageRange)
	}
	if got := len(f.Usages()); got != 8 {
		t.Errorf("expected 8 expanded usages, got %d", got)
	}
}

// TestRawAndCapabilityPathsAgree decodes a raw descriptor and builds the
// capability table describing the same physical layout; both paths must
// produce field-for-field identical collections.
func TestRawAndCapabilityPathsAgree(t *testing.T) {
	raw := []byte{
		0x06, 0x00, 0xFF, // Usage Page (Vendor FF00)
		0x09, 0x01, // Usage (1)
		0xA1, 0x01, // Collection (Application)
		0x85, 0x10, //   Report ID (16)
		0x09, 0x02, //   Usage (2)
		0x75, 0x08, //   Report Size (8)
		0x95, 0x06, //   Report Count (6)
		0x81, 0x02, //   Input (Data,Var,Abs)
		0x05, 0x09, //   Usage Page (Button)
		0x19, 0x01, //   Usage Minimum (1)
		0x29, 0x08, //   Usage Maximum (8)
		0x75, 0x01, //   Report Size (1)
		0x95, 0x08, //   Report Count (8)
		0x81, 0x02, //   Input (Data,Var,Abs)
		0x06, 0x00, 0xFF, //   Usage Page (Vendor FF00)
		0x85, 0x11, //   Report ID (17)
		0x09, 0x03, //   Usage (3)
		0x75, 0x08, //   Report Size (8)
		0x95, 0x0F, //   Report Count (15)
		0x91, 0x02, //   Output (Data,Var,Abs)
		0xC0, // End Collection
	}
	desc, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(desc.Collections) != 1 {
		t.Fatalf("expected 1 collection, got %d", len(desc.Collections))
	}

	table := CapabilityTable{
		UsagePage:      0xFF00,
		Usage:          0x0001,
		CollectionType: CollectionTypeApplication,
		Input: ReportCaps{
			Buttons: []FieldCap{
				{ReportID: 0x10, DataIndex: 1, BitField: 0x02, UsagePage: 0x09, IsRange: true, UsageMin: 0x01, UsageMax: 0x08},
			},
			Values: []FieldCap{
				{ReportID: 0x10, DataIndex: 0, BitField: 0x02, UsagePage: 0xFF00, Usage: 0x02},
			},
		},
		Output: ReportCaps{
			Values: []FieldCap{
				{ReportID: 0x11, DataIndex: 0, BitField: 0x02, UsagePage: 0xFF00, Usage: 0x03},
			},
		},
	}
	built := FromCapabilities(table)

	if !reflect.DeepEqual(built, desc.Collections[0]) {
		t.Errorf("models differ:\nraw:  %+v\ncaps: %+v", desc.Collections[0], built)
	}
}
