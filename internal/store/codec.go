package store

import (
	"database/sql"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/cmhistory/pkg/models"
)

// Stored JSON columns are decoded leniently: anything unreadable becomes
// the empty value for its field.

func encodeJSON(v any) (sql.NullString, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func encodeTimeline(t models.Timeline) (sql.NullString, error) {
	if len(t) == 0 {
		return sql.NullString{}, nil
	}
	return encodeJSON(t)
}

func encodeAddress(a *models.Address) (sql.NullString, error) {
	if a == nil || a.IsEmpty() {
		return sql.NullString{}, nil
	}
	return encodeJSON(a)
}

func encodeRefunds(r models.RefundTotals) (sql.NullString, error) {
	if len(r) == 0 {
		return sql.NullString{}, nil
	}
	return encodeJSON(r)
}

func encodeInfo(info map[string]string) (sql.NullString, error) {
	if len(info) == 0 {
		return sql.NullString{}, nil
	}
	return encodeJSON(info)
}

func decodeTimeline(ns sql.NullString) models.Timeline {
	out := models.Timeline{}
	if !ns.Valid || ns.String == "" {
		return out
	}
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil {
		log.Debug().Err(err).Msg("Discarding unreadable stored timeline")
		return models.Timeline{}
	}
	if out == nil {
		return models.Timeline{}
	}
	return out
}

func decodeAddress(ns sql.NullString) *models.Address {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var a models.Address
	if err := json.Unmarshal([]byte(ns.String), &a); err != nil {
		log.Debug().Err(err).Msg("Discarding unreadable stored address")
		return nil
	}
	if a.IsEmpty() {
		return nil
	}
	return &a
}

func decodeRefunds(ns sql.NullString) models.RefundTotals {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var r models.RefundTotals
	if err := json.Unmarshal([]byte(ns.String), &r); err != nil {
		log.Debug().Err(err).Msg("Discarding unreadable stored refund totals")
		return nil
	}
	if len(r) == 0 {
		return nil
	}
	return r
}

func decodeInfo(ns sql.NullString) map[string]string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var info map[string]string
	if err := json.Unmarshal([]byte(ns.String), &info); err != nil {
		return nil
	}
	return info
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	n := int(ni.Int64)
	return &n
}
