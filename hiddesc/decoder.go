package hiddesc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

type DecoderOption func(o *decoderOptions)

type decoderOptions struct {
	bufferSize int
}

func WithBufferSize(size int) DecoderOption {
	return func(o *decoderOptions) {
		o.bufferSize = size
	}
}

// Decoder reads a raw report-descriptor byte stream and produces the
// ReportDescriptor model. It also accumulates per-report byte lengths so a
// backend without a capability-table API can size its report buffers.
type Decoder struct {
	reader  io.Reader
	err     error
	options decoderOptions
	buf     []byte
	state   *decoderState
}

func NewDecoder(r io.Reader, opts ...DecoderOption) *Decoder {
	options := decoderOptions{
		bufferSize: 1024,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &Decoder{
		reader:  r,
		options: options,
		buf:     make([]byte, options.bufferSize),
	}
}

// Decode is a convenience wrapper decoding an in-memory descriptor.
func Decode(data []byte) (ReportDescriptor, error) {
	return NewDecoder(bytes.NewReader(data)).Decode()
}

type commandFn func(state *decoderState, payload []byte) error

type globalState struct {
	usagePage       uint16
	logicalMinimum  int32
	logicalMaximum  int32
	physicalMinimum int32
	physicalMaximum int32
	unitExponent    uint32
	unit            uint32
	reportID        uint8
	reportCount     uint32
	reportSize      uint32
}

type localState struct {
	usages        []Usage
	usageMinimum  Usage
	usageMaximum  Usage
	hasUsageRange bool

	designatorIndex   uint8
	designatorMinimum uint8
	designatorMaximum uint8

	stringIndex   uint8
	stringMinimum uint8
	stringMaximum uint8
}

type decoderState struct {
	global      *globalState
	local       *localState
	globalStack []globalState

	// top is the top-level collection currently being filled; depth counts
	// open collections including nested ones.
	top         *Collection
	depth       int
	collections []Collection

	bits     map[ReportID]uint32
	numbered bool

	command           tag
	commandFn         commandFn
	commandPayloadLen uint8
	commandPayload    []byte
}

func (d *Decoder) initState() {
	d.state = &decoderState{
		global: &globalState{},
		local:  &localState{},
		bits:   make(map[ReportID]uint32),
	}
}

var commandMap = map[tag]commandFn{
	tagInput:         cmdInput,
	tagOutput:        cmdOutput,
	tagFeature:       cmdFeature,
	tagCollection:    cmdCollection,
	tagEndCollection: cmdEndCollection,

	tagUsagePage:       cmdUsagePage,
	tagLogicalMinimum:  cmdLogicalMinimum,
	tagLogicalMaximum:  cmdLogicalMaximum,
	tagPhysicalMinimum: cmdPhysicalMinimum,
	tagPhysicalMaximum: cmdPhysicalMaximum,
	tagUnitExponent:    cmdUnitExponent,
	tagUnit:            cmdUnit,
	tagReportSize:      cmdReportSize,
	tagReportID:        cmdReportID,
	tagReportCount:     cmdReportCount,
	tagPush:            cmdPush,
	tagPop:             cmdPop,

	tagUsage:             cmdUsage,
	tagUsageMinimum:      cmdUsageMinimum,
	tagUsageMaximum:      cmdUsageMaximum,
	tagDesignatorIndex:   cmdDesignatorIndex,
	tagDesignatorMinimum: cmdDesignatorMinimum,
	tagDesignatorMaximum: cmdDesignatorMaximum,
	tagStringIndex:       cmdStringIndex,
	tagStringMinimum:     cmdStringMinimum,
	tagStringMaximum:     cmdStringMaximum,
	tagDelimiter:         cmdDelimiter,
}

func (d *Decoder) parseChunk(chunk []byte) error {
	for _, b := range chunk {
		switch {
		case d.state.command == 0:
			// new command
			t := tag(b)
			d.state.command = t.prefix()
			d.state.commandFn = commandMap[d.state.command]
			if d.state.commandFn == nil {
				return fmt.Errorf("unknown item code: %#02x", b)
			}
			switch t.payloadSize() {
			case tagItemSize0:
				d.state.commandPayloadLen = 0
			case tagItemSize8:
				d.state.commandPayloadLen = 1
			case tagItemSize16:
				d.state.commandPayloadLen = 2
			case tagItemSize32:
				d.state.commandPayloadLen = 4
			}
			d.state.commandPayload = make([]byte, 0, d.state.commandPayloadLen)
		default:
			// adding payload to command
			d.state.commandPayload = append(d.state.commandPayload, b)
		}
		if len(d.state.commandPayload) == int(d.state.commandPayloadLen) {
			// command complete, execute and reset command state
			err := d.state.commandFn(d.state, d.state.commandPayload)
			if err != nil {
				return fmt.Errorf("failed to execute item: %w", err)
			}
			d.state.command = 0
			d.state.commandPayload = nil
			d.state.commandFn = nil
			d.state.commandPayloadLen = 0
		}
	}
	return nil
}

func (s *decoderState) descriptor() (ReportDescriptor, error) {
	if s.depth != 0 {
		return ReportDescriptor{}, errors.New("unterminated collection")
	}
	return ReportDescriptor{Collections: s.collections}, nil
}

func (d *Decoder) Decode() (ReportDescriptor, error) {
	if d.err != nil {
		return ReportDescriptor{}, d.err
	}
	d.initState()
	for {
		size, err := d.reader.Read(d.buf)
		if size > 0 {
			if perr := d.parseChunk(d.buf[:size]); perr != nil {
				d.err = perr
				return ReportDescriptor{}, perr
			}
		}
		if size == 0 || errors.Is(err, io.EOF) {
			return d.state.descriptor()
		}
		if err != nil {
			d.err = fmt.Errorf("failed to read descriptor: %w", err)
			return ReportDescriptor{}, d.err
		}
	}
}

// ReportLengths is the maximum on-the-wire report size per report type, in
// bytes, including the leading report-id byte when the device numbers its
// reports.
type ReportLengths struct {
	Input   int
	Output  int
	Feature int
}

// MaxLengths returns the report lengths accumulated by the last Decode call.
func (d *Decoder) MaxLengths() ReportLengths {
	var lengths ReportLengths
	if d.state == nil {
		return lengths
	}
	prefix := 0
	if d.state.numbered {
		prefix = 1
	}
	for id, bits := range d.state.bits {
		n := int(bits+7)/8 + prefix
		switch id.Type {
		case ReportTypeInput:
			if n > lengths.Input {
				lengths.Input = n
			}
		case ReportTypeOutput:
			if n > lengths.Output {
				lengths.Output = n
			}
		case ReportTypeFeature:
			if n > lengths.Feature {
				lengths.Feature = n
			}
		}
	}
	return lengths
}
