package core

import (
	"context"
	"fmt"
	"log/slog"
)

// ParseReport collects the recoveries made while parsing one batch.
type ParseReport struct {
	Dropped []*DecodeError // Records dropped in isolating mode
	Format  *FormatReport
}

// Parser runs records through registry lookup, decoding and formatting.
type Parser struct {
	registry *SpecRegistry
	isolate  bool
	logger   *slog.Logger
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithRecordIsolation makes the parser drop undecodable records instead of
// failing the batch.
func WithRecordIsolation(isolate bool) ParserOption {
	return func(p *Parser) { p.isolate = isolate }
}

// WithLogger sets the parser's logger.
func WithLogger(logger *slog.Logger) ParserOption {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewParser creates a parser over registry.
func NewParser(registry *SpecRegistry, opts ...ParserOption) *Parser {
	p := &Parser{
		registry: registry,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse decodes and formats Shift_JIS encoded records of recordType.
func (p *Parser) Parse(ctx context.Context, recordType string, records [][]byte) (*Table, *ParseReport, error) {
	return p.run(ctx, recordType, func(d *Decoder) (*Table, error) {
		return d.DecodeRecords(records)
	})
}

// ParseLines decodes and formats text lines of recordType.
func (p *Parser) ParseLines(ctx context.Context, recordType string, lines []string) (*Table, *ParseReport, error) {
	return p.run(ctx, recordType, func(d *Decoder) (*Table, error) {
		return d.DecodeLines(lines)
	})
}

func (p *Parser) run(ctx context.Context, recordType string, decode func(*Decoder) (*Table, error)) (*Table, *ParseReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	spec, err := p.registry.Get(recordType)
	if err != nil {
		return nil, nil, err
	}

	logger := p.logger.With("record_type", recordType)

	opts := []DecoderOption{WithDecoderLogger(logger)}
	if p.isolate {
		opts = append(opts, WithIsolation())
	}
	decoder := NewDecoder(spec, opts...)

	table, err := decode(decoder)
	if err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", recordType, err)
	}

	formatReport, err := NewFormatter(logger).Format(table)
	if err != nil {
		return nil, nil, fmt.Errorf("format %s: %w", recordType, err)
	}

	logger.Debug("records parsed",
		"rows", table.Len(),
		"dropped", len(decoder.Failures()),
		"fallbacks", len(formatReport.Fallbacks),
	)

	return table, &ParseReport{Dropped: decoder.Failures(), Format: formatReport}, nil
}
