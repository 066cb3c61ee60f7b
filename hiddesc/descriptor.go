// Package hiddesc models the report capabilities of a HID device: fields,
// usages, flags and collections, grouped by report type and numeric report id.
//
// A ReportDescriptor is built either by decoding a raw report-descriptor byte
// stream (see Decoder) or from a platform's pre-parsed capability tables (see
// FromCapabilities). Both paths produce structurally identical models for the
// same physical device.
package hiddesc

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ReportType distinguishes the three report namespaces. The values are the
// HID main-item tags describing each kind of report.
type ReportType uint8

const (
	ReportTypeInput   ReportType = 8
	ReportTypeOutput  ReportType = 9
	ReportTypeFeature ReportType = 11
)

func (t ReportType) String() string {
	switch t {
	case ReportTypeInput:
		return "input"
	case ReportTypeOutput:
		return "output"
	case ReportTypeFeature:
		return "feature"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// ReportID identifies one report bucket: a report type plus the numeric id
// byte used on the wire. It is comparable and usable as a map key.
type ReportID struct {
	Type ReportType
	ID   uint8
}

// Less orders report ids lexicographically on (type, id).
func (r ReportID) Less(other ReportID) bool {
	if r.Type != other.Type {
		return r.Type < other.Type
	}
	return r.ID < other.ID
}

func (r ReportID) String() string {
	return fmt.Sprintf("%s/%d", r.Type, r.ID)
}

func (r ReportID) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *ReportID) UnmarshalText(data []byte) error {
	parts := strings.SplitN(string(data), "/", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid report id: %s", data)
	}
	var typ ReportType
	switch parts[0] {
	case "input":
		typ = ReportTypeInput
	case "output":
		typ = ReportTypeOutput
	case "feature":
		typ = ReportTypeFeature
	default:
		return fmt.Errorf("invalid report type: %s", parts[0])
	}
	id, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return fmt.Errorf("invalid report id: %w", err)
	}
	*r = ReportID{Type: typ, ID: uint8(id)}
	return nil
}

// FieldFlags is the raw main-item bit field of a report field.
type FieldFlags uint32

const (
	FieldFlagConstant      FieldFlags = 1 << iota // 0 = Data, 1 = Constant
	FieldFlagVariable                             // 0 = Array, 1 = Variable
	FieldFlagRelative                             // 0 = Absolute, 1 = Relative
	FieldFlagWrap                                 // 0 = No wrap, 1 = Wrap
	FieldFlagNonLinear                            // 0 = Linear, 1 = Non-linear
	FieldFlagNoPreferred                          // 0 = Preferred state, 1 = No preferred
	FieldFlagNullState                            // 0 = No null position, 1 = Null state
	FieldFlagVolatile                             // 0 = Non-volatile, 1 = Volatile
	FieldFlagBufferedBytes                        // 0 = Bit field, 1 = Buffered bytes
)

func (f FieldFlags) IsConstant() bool {
	return f&FieldFlagConstant != 0
}

func (f FieldFlags) IsData() bool {
	return !f.IsConstant()
}

func (f FieldFlags) IsVariable() bool {
	return f&FieldFlagVariable != 0
}

func (f FieldFlags) IsArray() bool {
	return !f.IsVariable()
}

func (f FieldFlags) IsRelative() bool {
	return f&FieldFlagRelative != 0
}

func (f FieldFlags) IsWrap() bool {
	return f&FieldFlagWrap != 0
}

func (f FieldFlags) IsNonLinear() bool {
	return f&FieldFlagNonLinear != 0
}

func (f FieldFlags) IsNoPreferred() bool {
	return f&FieldFlagNoPreferred != 0
}

func (f FieldFlags) IsNullState() bool {
	return f&FieldFlagNullState != 0
}

func (f FieldFlags) IsVolatile() bool {
	return f&FieldFlagVolatile != 0
}

func (f FieldFlags) IsBufferedBytes() bool {
	return f&FieldFlagBufferedBytes != 0
}

// NewUsage creates a Usage from a usage page and a usage id.
func NewUsage(page, id uint16) Usage {
	return Usage(uint32(page)<<16 | uint32(id))
}

// Usage is a combination of usage page and usage id.
type Usage uint32

func (u Usage) Page() uint16 {
	return uint16(u >> 16)
}

func (u Usage) ID() uint16 {
	return uint16(u)
}

func (u Usage) String() string {
	return fmt.Sprintf("%04x:%04x", u.Page(), u.ID())
}

// UsageRange is an inclusive range of usages sharing one usage page.
type UsageRange struct {
	Min Usage `json:"min"`
	Max Usage `json:"max"`
}

// ReportField describes one field of a report. Exactly one of UsageList and
// UsageRange is populated. A constant padding field has an empty UsageList.
type ReportField struct {
	Flags      FieldFlags  `json:"flags"`
	UsageList  []Usage     `json:"usageList,omitempty"`
	UsageRange *UsageRange `json:"usageRange,omitempty"`
}

// HasRange reports whether the field declares its usages as a range.
func (f ReportField) HasRange() bool {
	return f.UsageRange != nil
}

// Usages returns the field's usages as a flat list, expanding a range.
func (f ReportField) Usages() []Usage {
	if f.UsageRange == nil {
		return f.UsageList
	}
	usages := make([]Usage, 0, f.UsageRange.Max-f.UsageRange.Min+1)
	for u := f.UsageRange.Min; u <= f.UsageRange.Max; u++ {
		usages = append(usages, u)
	}
	return usages
}

type CollectionType uint8

const (
	CollectionTypePhysical CollectionType = iota
	CollectionTypeApplication
	CollectionTypeLogical
	CollectionTypeReport
	CollectionTypeNamedArray
	CollectionTypeUsageSwitch
	CollectionTypeUsageModifier
)

// Collection is one top-level application collection of a device interface.
// Reports groups the collection's fields by (report type, report id). Field
// order within a bucket is the device's internal data-index order, ascending,
// with button and value fields merged by that index. The order governs how
// raw report bytes map to fields and is preserved exactly.
type Collection struct {
	Type    CollectionType             `json:"type"`
	Usage   Usage                      `json:"usage"`
	Reports map[ReportID][]ReportField `json:"reports"`
}

// ReportIDs returns the collection's report ids sorted on (type, id).
func (c Collection) ReportIDs() []ReportID {
	ids := make([]ReportID, 0, len(c.Reports))
	for id := range c.Reports {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].Less(ids[j])
	})
	return ids
}

// FieldCount returns the total number of fields over all report buckets.
func (c Collection) FieldCount() int {
	count := 0
	for _, fields := range c.Reports {
		count += len(fields)
	}
	return count
}

func (c Collection) Clone() Collection {
	reports := make(map[ReportID][]ReportField, len(c.Reports))
	for id, fields := range c.Reports {
		cloned := make([]ReportField, len(fields))
		for i, f := range fields {
			cloned[i] = ReportField{
				Flags:     f.Flags,
				UsageList: append([]Usage(nil), f.UsageList...),
			}
			if f.UsageRange != nil {
				r := *f.UsageRange
				cloned[i].UsageRange = &r
			}
		}
		reports[id] = cloned
	}
	return Collection{
		Type:    c.Type,
		Usage:   c.Usage,
		Reports: reports,
	}
}

// ReportDescriptor is the structural model of a device's reports. It holds
// top-level collections only. It is built once when the device is opened and
// must not be modified afterwards.
type ReportDescriptor struct {
	Collections []Collection `json:"collections"`
}

// ReportIDs returns all report ids declared by any collection, sorted.
func (d ReportDescriptor) ReportIDs() []ReportID {
	seen := make(map[ReportID]struct{})
	var ids []ReportID
	for _, c := range d.Collections {
		for id := range c.Reports {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].Less(ids[j])
	})
	return ids
}

// FieldCount returns the total number of fields over all collections.
func (d ReportDescriptor) FieldCount() int {
	count := 0
	for _, c := range d.Collections {
		count += c.FieldCount()
	}
	return count
}

func (d ReportDescriptor) Clone() ReportDescriptor {
	collections := make([]Collection, len(d.Collections))
	for i, c := range d.Collections {
		collections[i] = c.Clone()
	}
	return ReportDescriptor{Collections: collections}
}
