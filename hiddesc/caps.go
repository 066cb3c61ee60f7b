package hiddesc

// FieldCap is one pre-parsed capability entry of a platform capability table,
// describing either a button (binary) or value field. DataIndex is the
// device's internal index of the field within its report; capability tables
// list entries sorted by it.
type FieldCap struct {
	ReportID  uint8
	DataIndex uint16
	// BitField is the raw main-item flag word, copied verbatim.
	BitField  uint32
	UsagePage uint16
	IsRange   bool
	Usage     uint16
	UsageMin  uint16
	UsageMax  uint16
}

// ReportCaps holds the capability entries of one report type, split into
// button and value lists the way platform APIs report them. Each list is
// sorted by ascending DataIndex.
type ReportCaps struct {
	Buttons []FieldCap
	Values  []FieldCap
}

// CapabilityTable is the pre-parsed capability summary of one device
// interface, as produced by platforms that parse the report descriptor in the
// kernel and expose the result instead of the raw bytes.
type CapabilityTable struct {
	UsagePage      uint16
	Usage          uint16
	CollectionType CollectionType

	InputLen   int
	OutputLen  int
	FeatureLen int

	Input   ReportCaps
	Output  ReportCaps
	Feature ReportCaps
}

func capField(fc FieldCap) ReportField {
	f := ReportField{Flags: FieldFlags(fc.BitField)}
	if fc.IsRange {
		f.UsageRange = &UsageRange{
			Min: NewUsage(fc.UsagePage, fc.UsageMin),
			Max: NewUsage(fc.UsagePage, fc.UsageMax),
		}
	} else {
		f.UsageList = []Usage{NewUsage(fc.UsagePage, fc.Usage)}
	}
	return f
}

// mergeCaps adds the button and value entries of one report type to the
// collection's buckets, merged by ascending DataIndex. Both inputs are
// already sorted by DataIndex, so a linear two-pointer merge preserves the
// device's field order without ever re-sorting by report id or usage.
func mergeCaps(c *Collection, typ ReportType, caps ReportCaps) {
	add := func(fc FieldCap) {
		id := ReportID{Type: typ, ID: fc.ReportID}
		c.Reports[id] = append(c.Reports[id], capField(fc))
	}

	buttons, values := caps.Buttons, caps.Values
	for len(buttons) > 0 && len(values) > 0 {
		if buttons[0].DataIndex < values[0].DataIndex {
			add(buttons[0])
			buttons = buttons[1:]
		} else {
			add(values[0])
			values = values[1:]
		}
	}
	for _, fc := range buttons {
		add(fc)
	}
	for _, fc := range values {
		add(fc)
	}
}

// FromCapabilities builds the collection model of one interface from its
// pre-parsed capability table. The result is structurally identical to what
// decoding the interface's raw report descriptor would produce.
func FromCapabilities(table CapabilityTable) Collection {
	c := Collection{
		Type:    table.CollectionType,
		Usage:   NewUsage(table.UsagePage, table.Usage),
		Reports: make(map[ReportID][]ReportField),
	}
	mergeCaps(&c, ReportTypeInput, table.Input)
	mergeCaps(&c, ReportTypeOutput, table.Output)
	mergeCaps(&c, ReportTypeFeature, table.Feature)
	return c
}
