// Package core converts JRDB fixed-width records into typed tables.
//
// This package holds the parsing engine and has no I/O dependencies: line
// sources, spec files, databases and downloads live in sibling packages and
// talk to core through small interfaces.
//
// # Pipeline
//
//	raw Shift_JIS lines
//	    -> Decoder   (byte-offset slicing per ColumnSpec)
//	    -> Table of strings
//	    -> Formatter (normalizer + value type per column)
//	    -> typed Table (nil, int64, float64, string cells)
//
// [Parser] wires the three steps together behind a [SpecRegistry].
//
// # Column Specs
//
// Each record type ("SED", "KYI", ...) has an ordered list of [ColumnSpec].
// Offsets count Shift_JIS bytes, because full-width characters occupy two
// bytes and half-width ones a single byte:
//
//	core.RecordSpec{
//	    Type: "SED",
//	    Columns: []core.ColumnSpec{
//	        {Name: "place_code", StartByte: 0, EndByte: 2, Type: core.TypeText},
//	        {Name: "time", StartByte: 10, EndByte: 14, Normalizer: core.NormalizeTimeToSeconds, Type: core.TypeFloat},
//	    },
//	}
//
// # Recovery
//
// A bad byte range is never hidden: it surfaces as a [DecodeError]. With
// record isolation enabled the offending record is dropped and reported
// while the rest of the batch proceeds.
//
// A normalizer failure only affects its own column, which keeps its raw
// values. Each such fallback is logged and listed in the [FormatReport].
package core
