package repository

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/diagnosis/justbook-waitlist/internal/utils"
	"github.com/diagnosis/justbook-waitlist/services/waitlist/internal/domain"
)

var csvHeader = []string{"Name", "Email", "Date"}

type jsonCodec struct{}

// decode accepts objects and the older bare-email string entries.
func (jsonCodec) decode(data []byte) ([]record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	recs := make([]record, 0, len(raw))
	for i, item := range raw {
		item = bytes.TrimSpace(item)
		if len(item) > 0 && item[0] == '"' {
			var email string
			if err := json.Unmarshal(item, &email); err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			recs = append(recs, record{Email: utils.NormalizeEmail(email)})
			continue
		}
		var rec record
		if err := json.Unmarshal(item, &rec); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		rec.Email = utils.NormalizeEmail(rec.Email)
		recs = append(recs, rec)
	}
	return recs, nil
}

func (jsonCodec) encode(recs []record) ([]byte, error) {
	if recs == nil {
		recs = []record{}
	}
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

type csvCodec struct{}

func (csvCodec) decode(data []byte) ([]record, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	recs := make([]record, 0, len(rows))
	for i, row := range rows {
		if i == 0 && len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), csvHeader[0]) {
			continue
		}
		if len(row) < 2 {
			continue
		}
		email := utils.NormalizeEmail(row[1])
		if email == "" {
			continue
		}
		rec := record{Name: strings.TrimSpace(row[0]), Email: email}
		if len(row) > 2 {
			rec.Date = parseDate(row[2])
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (csvCodec) encode(recs []record) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCSV(&buf, recs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteRegistrantsCSV writes the Name,Email,Date export of rs.
func WriteRegistrantsCSV(w io.Writer, rs []domain.Registrant) error {
	recs := make([]record, 0, len(rs))
	for _, r := range rs {
		recs = append(recs, record{Name: r.Name, Email: r.Email, Date: r.JoinedAt})
	}
	return writeCSV(w, recs)
}

// WriteOptOutsCSV writes the Name,Email,Date export of opt-outs.
func WriteOptOutsCSV(w io.Writer, optOuts []domain.OptOut) error {
	recs := make([]record, 0, len(optOuts))
	for _, o := range optOuts {
		recs = append(recs, record{Name: o.Name, Email: o.Email, Date: o.LeftAt})
	}
	return writeCSV(w, recs)
}

func writeCSV(w io.Writer, recs []record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, rec := range recs {
		if err := cw.Write([]string{rec.Name, rec.Email, formatDate(rec.Date)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, time.DateTime, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
