package hiddesc

import (
	"encoding/binary"
	"errors"
	"fmt"
)

func toUint16(payload []byte) (uint16, error) {
	if len(payload) > 2 {
		return 0, fmt.Errorf("uint16 payload too long")
	}
	if len(payload) == 0 {
		return 0, fmt.Errorf("uint16 payload is missing")
	}
	if len(payload) == 1 {
		payload = append(payload, 0)
	}
	return binary.LittleEndian.Uint16(payload), nil
}

func toUint32(payload []byte) (uint32, error) {
	if len(payload) > 4 {
		return 0, fmt.Errorf("uint32 payload too long")
	}
	if len(payload) == 0 {
		return 0, fmt.Errorf("uint32 payload is missing")
	}
	if len(payload) < 4 {
		// pad payload
		payload = append(payload, make([]byte, 4-len(payload))...)
	}
	return binary.LittleEndian.Uint32(payload), nil
}

func toInt32(payload []byte) (int32, error) {
	switch len(payload) {
	case 1:
		return int32(int8(payload[0])), nil
	case 2:
		val, err := toUint16(payload)
		if err != nil {
			return 0, fmt.Errorf("int32: %w", err)
		}
		return int32(int16(val)), nil
	case 4:
		val, err := toUint32(payload)
		if err != nil {
			return 0, fmt.Errorf("int32: %w", err)
		}
		return int32(val), nil
	default:
		return 0, fmt.Errorf("int32: payload length is not 1, 2 or 4")
	}
}

// usageValue resolves a Usage item payload against the current usage page.
// A four-byte payload carries its own page in the upper half.
func usageValue(state *decoderState, payload []byte) (Usage, error) {
	if len(payload) == 4 {
		val, err := toUint32(payload)
		if err != nil {
			return 0, err
		}
		return Usage(val), nil
	}
	val, err := toUint16(payload)
	if err != nil {
		return 0, err
	}
	return NewUsage(state.global.usagePage, val), nil
}

func (s *decoderState) addField(typ ReportType, payload []byte) error {
	if s.depth == 0 || s.top == nil {
		return errors.New("no open collection")
	}
	flags, err := toUint32(payload)
	if err != nil {
		return err
	}
	field := ReportField{Flags: FieldFlags(flags)}
	if s.local.hasUsageRange {
		field.UsageRange = &UsageRange{
			Min: s.local.usageMinimum,
			Max: s.local.usageMaximum,
		}
	} else {
		field.UsageList = append([]Usage(nil), s.local.usages...)
	}
	id := ReportID{Type: typ, ID: s.global.reportID}
	s.top.Reports[id] = append(s.top.Reports[id], field)
	s.bits[id] += s.global.reportSize * s.global.reportCount
	if s.global.reportID != 0 {
		s.numbered = true
	}
	s.local = &localState{}
	return nil
}

func cmdInput(state *decoderState, payload []byte) error {
	if err := state.addField(ReportTypeInput, payload); err != nil {
		return fmt.Errorf("input: %w", err)
	}
	return nil
}

func cmdOutput(state *decoderState, payload []byte) error {
	if err := state.addField(ReportTypeOutput, payload); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	return nil
}

func cmdFeature(state *decoderState, payload []byte) error {
	if err := state.addField(ReportTypeFeature, payload); err != nil {
		return fmt.Errorf("feature: %w", err)
	}
	return nil
}

func cmdCollection(state *decoderState, payload []byte) error {
	if len(payload) != 1 {
		return fmt.Errorf("collection: payload length is not 1")
	}
	if state.depth == 0 {
		var usage Usage
		if len(state.local.usages) > 0 {
			usage = state.local.usages[0]
		}
		state.top = &Collection{
			Type:    CollectionType(payload[0]),
			Usage:   usage,
			Reports: make(map[ReportID][]ReportField),
		}
	}
	// Nested collections only contribute their fields to the enclosing
	// top-level collection; the nesting itself is not modeled.
	state.depth++
	state.local = &localState{}
	return nil
}

func cmdEndCollection(state *decoderState, payload []byte) error {
	if len(payload) != 0 {
		return fmt.Errorf("end collection: payload length is not 0")
	}
	if state.depth == 0 {
		return errors.New("end collection: no open collection")
	}
	state.depth--
	if state.depth == 0 {
		state.collections = append(state.collections, *state.top)
		state.top = nil
	}
	state.local = &localState{}
	return nil
}

func cmdUsagePage(state *decoderState, payload []byte) error {
	val, err := toUint16(payload)
	if err != nil {
		return fmt.Errorf("usage page: %w", err)
	}
	state.global.usagePage = val
	return nil
}

func cmdLogicalMinimum(state *decoderState, payload []byte) error {
	val, err := toInt32(payload)
	if err != nil {
		return fmt.Errorf("logical minimum: %w", err)
	}
	state.global.logicalMinimum = val
	return nil
}

func cmdLogicalMaximum(state *decoderState, payload []byte) error {
	val, err := toInt32(payload)
	if err != nil {
		return fmt.Errorf("logical maximum: %w", err)
	}
	state.global.logicalMaximum = val
	return nil
}

func cmdPhysicalMinimum(state *decoderState, payload []byte) error {
	val, err := toInt32(payload)
	if err != nil {
		return fmt.Errorf("physical minimum: %w", err)
	}
	state.global.physicalMinimum = val
	return nil
}

func cmdPhysicalMaximum(state *decoderState, payload []byte) error {
	val, err := toInt32(payload)
	if err != nil {
		return fmt.Errorf("physical maximum: %w", err)
	}
	state.global.physicalMaximum = val
	return nil
}

func cmdUnitExponent(state *decoderState, payload []byte) error {
	val, err := toUint32(payload)
	if err != nil {
		return fmt.Errorf("unit exponent: %w", err)
	}
	state.global.unitExponent = val
	return nil
}

func cmdUnit(state *decoderState, payload []byte) error {
	val, err := toUint32(payload)
	if err != nil {
		return fmt.Errorf("unit: %w", err)
	}
	state.global.unit = val
	return nil
}

func cmdReportSize(state *decoderState, payload []byte) error {
	val, err := toUint32(payload)
	if err != nil {
		return fmt.Errorf("report size: %w", err)
	}
	state.global.reportSize = val
	return nil
}

func cmdReportID(state *decoderState, payload []byte) error {
	val, err := toUint32(payload)
	if err != nil {
		return fmt.Errorf("report id: %w", err)
	}
	state.global.reportID = uint8(val)
	return nil
}

func cmdReportCount(state *decoderState, payload []byte) error {
	val, err := toUint32(payload)
	if err != nil {
		return fmt.Errorf("report count: %w", err)
	}
	state.global.reportCount = val
	return nil
}

func cmdPush(state *decoderState, payload []byte) error {
	state.globalStack = append(state.globalStack, *state.global)
	return nil
}

func cmdPop(state *decoderState, payload []byte) error {
	if len(state.globalStack) == 0 {
		return errors.New("pop: stack is empty")
	}
	*state.global = state.globalStack[len(state.globalStack)-1]
	state.globalStack = state.globalStack[:len(state.globalStack)-1]
	return nil
}

func cmdUsage(state *decoderState, payload []byte) error {
	val, err := usageValue(state, payload)
	if err != nil {
		return fmt.Errorf("usage: %w", err)
	}
	state.local.usages = append(state.local.usages, val)
	return nil
}

func cmdUsageMinimum(state *decoderState, payload []byte) error {
	val, err := usageValue(state, payload)
	if err != nil {
		return fmt.Errorf("usage minimum: %w", err)
	}
	state.local.usageMinimum = val
	state.local.hasUsageRange = true
	return nil
}

func cmdUsageMaximum(state *decoderState, payload []byte) error {
	val, err := usageValue(state, payload)
	if err != nil {
		return fmt.Errorf("usage maximum: %w", err)
	}
	state.local.usageMaximum = val
	state.local.hasUsageRange = true
	return nil
}

func cmdDesignatorIndex(state *decoderState, payload []byte) error {
	if len(payload) != 1 {
		return fmt.Errorf("designator index: payload length is not 1")
	}
	state.local.designatorIndex = payload[0]
	return nil
}

func cmdDesignatorMinimum(state *decoderState, payload []byte) error {
	if len(payload) != 1 {
		return fmt.Errorf("designator minimum: payload length is not 1")
	}
	state.local.designatorMinimum = payload[0]
	return nil
}

func cmdDesignatorMaximum(state *decoderState, payload []byte) error {
	if len(payload) != 1 {
		return fmt.Errorf("designator maximum: payload length is not 1")
	}
	state.local.designatorMaximum = payload[0]
	return nil
}

func cmdStringIndex(state *decoderState, payload []byte) error {
	if len(payload) != 1 {
		return fmt.Errorf("string index: payload length is not 1")
	}
	state.local.stringIndex = payload[0]
	return nil
}

func cmdStringMinimum(state *decoderState, payload []byte) error {
	if len(payload) != 1 {
		return fmt.Errorf("string minimum: payload length is not 1")
	}
	state.local.stringMinimum = payload[0]
	return nil
}

func cmdStringMaximum(state *decoderState, payload []byte) error {
	if len(payload) != 1 {
		return fmt.Errorf("string maximum: payload length is not 1")
	}
	state.local.stringMaximum = payload[0]
	return nil
}

func cmdDelimiter(state *decoderState, payload []byte) error {
	return errors.New("delimiter: not implemented")
}
