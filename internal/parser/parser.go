// Package parser turns a raw JSON-RPC document — either an HTTP getLogs
// response or a WebSocket logsSubscribe notification — into Events pushed
// onto the ingestion queue. Both wire shapes are normalized to the same
// internal walk so the HTTP poller and the WebSocket client can share one
// code path.
package parser

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/projectyurei/yurei-jsonrpc-client/internal/event"
	"github.com/projectyurei/yurei-jsonrpc-client/internal/ingesterr"
	"github.com/projectyurei/yurei-jsonrpc-client/internal/queue"
)

// programDataMarker is the literal prefix the chain runtime emits before a
// base64-encoded log payload.
const programDataMarker = "Program data:"

// ProgramIDs maps the two known on-chain programs to the ids configured for
// this deployment, so the parser can classify a record's Kind.
type ProgramIDs struct {
	Pumpfun string
	Raydium string
}

// classify returns the Kind matching programID (case-insensitive). An empty
// programID defaults to Pumpfun: preserved for wire compatibility with
// upstream nodes that omit the field, even though the mapping is arguably
// the wrong default for a record that didn't actually name a program.
func (p ProgramIDs) classify(programID string) event.Kind {
	if programID == "" {
		return event.KindPumpfun
	}
	switch {
	case strings.EqualFold(programID, p.Pumpfun):
		return event.KindPumpfun
	case strings.EqualFold(programID, p.Raydium):
		return event.KindRaydium
	default:
		return event.KindUnknown
	}
}

// rpcDocument is the shape shared by an HTTP getLogs response and a
// WebSocket logsSubscribe notification after the top-level envelope
// ("result" vs "params.result") is peeled off.
type rpcDocument struct {
	Result *rpcResult `json:"result"`
	Params *struct {
		Result *rpcResult `json:"result"`
	} `json:"params"`
}

type rpcResult struct {
	Context *struct {
		Slot *uint64 `json:"slot"`
	} `json:"context"`
	Value json.RawMessage `json:"value"`
}

type logRecord struct {
	Logs      []json.RawMessage `json:"logs"`
	Signature string            `json:"signature"`
	Slot      *uint64           `json:"slot"`
	ProgramID string            `json:"programId"`
}

// Parse decodes body against both recognized wire shapes, pushes one Event
// per "Program data:" log line onto q, and returns the number of events
// enqueued and the highest slot among the enqueued events (never below
// fallbackSlot).
//
// fallbackSlot seeds the returned slot so callers (the HTTP poller) can pass
// their current cursor and receive it back unchanged when the document
// carries no slot information of its own. Malformed top-level JSON returns
// (0, fallbackSlot, err); internally malformed sub-trees are skipped record
// by record rather than aborting the whole call.
func Parse(body []byte, ids ProgramIDs, q *queue.Queue, fallbackSlot uint64) (enqueued int, highestSlot uint64, err error) {
	highestSlot = fallbackSlot

	var doc rpcDocument
	if jsonErr := json.Unmarshal(body, &doc); jsonErr != nil {
		log.Warn().Err(jsonErr).Msg("parser: malformed top-level JSON")
		return 0, fallbackSlot, fmt.Errorf("%w: %v", ingesterr.ErrParse, jsonErr)
	}

	result := doc.Result
	if result == nil && doc.Params != nil {
		result = doc.Params.Result
	}
	if result == nil {
		return 0, fallbackSlot, nil
	}

	var contextSlot uint64
	if result.Context != nil && result.Context.Slot != nil {
		contextSlot = *result.Context.Slot
	}

	records := decodeRecords(result.Value)
	for _, rec := range records {
		n, slot := processRecord(rec, ids, q, contextSlot, fallbackSlot)
		enqueued += n
		if n > 0 && slot > highestSlot {
			highestSlot = slot
		}
	}
	return enqueued, highestSlot, nil
}

// decodeRecords accepts value as either a single object or an array of
// objects, per the data model's two tolerated shapes.
func decodeRecords(value json.RawMessage) []logRecord {
	if len(value) == 0 {
		return nil
	}

	var single logRecord
	if err := json.Unmarshal(value, &single); err == nil && looksLikeRecord(value) {
		return []logRecord{single}
	}

	var many []logRecord
	if err := json.Unmarshal(value, &many); err == nil {
		return many
	}
	return nil
}

// looksLikeRecord distinguishes a JSON object from a JSON array without a
// second full unmarshal pass.
func looksLikeRecord(value json.RawMessage) bool {
	for _, b := range value {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}

// processRecord extracts every "Program data:" payload from rec.Logs
// (internally malformed entries are skipped, not fatal), decodes each one,
// and pushes one Event per match. It returns the number of events enqueued
// and the slot they were tagged with.
func processRecord(rec logRecord, ids ProgramIDs, q *queue.Queue, contextSlot, fallbackSlot uint64) (int, uint64) {
	slot := fallbackSlot
	if contextSlot > 0 {
		slot = contextSlot
	}
	if rec.Slot != nil {
		slot = *rec.Slot
	}

	enqueued := 0
	for _, rawLog := range rec.Logs {
		var line string
		if err := json.Unmarshal(rawLog, &line); err != nil {
			continue
		}

		idx := strings.Index(line, programDataMarker)
		if idx < 0 {
			continue
		}

		payload := strings.TrimLeft(line[idx+len(programDataMarker):], " \t")
		if payload == "" {
			continue
		}

		data, decodeErr := decodeBase64(payload)
		if decodeErr != nil {
			log.Warn().Err(decodeErr).Str("signature", rec.Signature).Msg("parser: dropping record, decode failure")
			continue
		}

		kind := ids.classify(rec.ProgramID)
		ev := event.New(kind, rec.ProgramID, rec.Signature, slot, data)

		if pushErr := q.Push(ev); pushErr != nil {
			log.Warn().Err(pushErr).Str("signature", rec.Signature).Msg("parser: dropping record, queue closed")
			continue
		}
		enqueued++
	}
	return enqueued, slot
}

// decodeBase64 implements the data model's tolerant decoder: standard
// alphabet with '=' padding, whitespace skipped, first invalid byte aborts,
// output capped at event.MaxDataLen.
func decodeBase64(s string) ([]byte, error) {
	filtered := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			filtered = append(filtered, c)
		}
	}

	decoded, err := base64.StdEncoding.DecodeString(string(filtered))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ingesterr.ErrDecode, err)
	}
	if len(decoded) > event.MaxDataLen {
		return nil, fmt.Errorf("%w: decoded payload of %d bytes exceeds max %d", ingesterr.ErrDecode, len(decoded), event.MaxDataLen)
	}
	return decoded, nil
}
