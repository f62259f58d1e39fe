// Package export renders a scraped batch to its two interchangeable
// encodings. Both encoders are pure functions of the batch: identical input
// produces byte-identical output. Only the output filenames carry a
// timestamp.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"member-archive/internal/models"
)

// record fixes the exported field set and order. The source group is implied
// by the batch and is not part of either encoding.
type record struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Phone      string `json:"phone"`
	IsPremium  bool   `json:"is_premium"`
	LastOnline int64  `json:"last_online"`
}

var csvHeader = []string{"id", "username", "first_name", "last_name", "phone", "is_premium", "last_online"}

// EncodeJSON renders the batch as a pretty-printed array of objects, one per
// member. Absent optional strings render as "".
func EncodeJSON(members []models.Member) ([]byte, error) {
	records := make([]record, 0, len(members))
	for _, m := range members {
		records = append(records, toRecord(m))
	}

	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return append(data, '\n'), nil
}

// EncodeCSV renders the batch as a header row plus one line per member.
// Fields containing delimiters or quotes are escaped per RFC 4180.
func EncodeCSV(members []models.Member) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("encode csv header: %w", err)
	}
	for _, m := range members {
		r := toRecord(m)
		row := []string{
			strconv.FormatInt(r.ID, 10),
			r.Username,
			r.FirstName,
			r.LastName,
			r.Phone,
			strconv.FormatBool(r.IsPremium),
			strconv.FormatInt(r.LastOnline, 10),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("encode csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFiles writes both encodings of the batch to
// <dir>/<base>_<unix_nanos>.json and <dir>/<base>_<unix_nanos>.csv, sharing
// one timestamp so the pair is identifiable as a single run.
func WriteFiles(dir, base string, members []models.Member) (jsonPath, csvPath string, err error) {
	jsonData, err := EncodeJSON(members)
	if err != nil {
		return "", "", err
	}
	csvData, err := EncodeCSV(members)
	if err != nil {
		return "", "", err
	}

	ts := time.Now().UnixNano()
	jsonPath = filepath.Join(dir, fmt.Sprintf("%s_%d.json", base, ts))
	csvPath = filepath.Join(dir, fmt.Sprintf("%s_%d.csv", base, ts))

	if err := os.WriteFile(jsonPath, jsonData, 0o644); err != nil {
		return "", "", fmt.Errorf("write %s: %w", jsonPath, err)
	}
	if err := os.WriteFile(csvPath, csvData, 0o644); err != nil {
		return "", "", fmt.Errorf("write %s: %w", csvPath, err)
	}
	return jsonPath, csvPath, nil
}

func toRecord(m models.Member) record {
	return record{
		ID:         m.ID,
		Username:   m.Username,
		FirstName:  m.FirstName,
		LastName:   m.LastName,
		Phone:      m.Phone,
		IsPremium:  m.IsPremium,
		LastOnline: m.LastOnline,
	}
}
