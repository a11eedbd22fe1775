package dataset

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"

	"regiokaart/internal/apperr"
	"regiokaart/internal/geobind"
	"regiokaart/internal/table"
)

// Record is the wire form of a dataset; the name is the key it is stored under.
type Record struct {
	Data       json.RawMessage `json:"data"`
	Columns    []string        `json:"columns,omitempty"`
	ReadType   string          `json:"read_type,omitempty"`
	Aggregated bool            `json:"aggregated"`
	Error      string          `json:"error,omitempty"`
	URL        string          `json:"url,omitempty"`
	File       string          `json:"file,omitempty"`
	LatCol     string          `json:"latcol,omitempty"`
	LongCol    string          `json:"longcol,omitempty"`
	CodeCol    string          `json:"codecol,omitempty"`
	Header     int             `json:"header,omitempty"`
	Sep        string          `json:"sep,omitempty"`
	Standard   bool            `json:"standard,omitempty"`
}

var emptyData = json.RawMessage("{}")

func ToRecord(d *Dataset) (*Record, error) {
	r := &Record{
		Data:       emptyData,
		Columns:    d.Columns,
		ReadType:   string(d.ReadType),
		Aggregated: d.Aggregated,
		Error:      d.Error,
		URL:        d.Source.URL,
		File:       d.Source.File,
		LatCol:     d.Source.Latitude,
		LongCol:    d.Source.Longitude,
		CodeCol:    d.Source.Code,
		Header:     d.Source.HeaderRow,
		Sep:        d.Source.Delimiter,
		Standard:   d.Standard,
	}
	if d.Usable() {
		b, err := sonic.ConfigStd.Marshal(d.Table.ToFeatureCollection())
		if err != nil {
			return nil, fmt.Errorf("encode dataset %s: %w", d.Name, err)
		}
		r.Data = b
	}
	return r, nil
}

func FromRecord(name string, r *Record) (*Dataset, error) {
	d := &Dataset{
		Name:       name,
		ReadType:   geobind.Mode(r.ReadType),
		Aggregated: r.Aggregated,
		Error:      r.Error,
		Standard:   r.Standard,
		Source: Source{
			URL:       r.URL,
			File:      r.File,
			Latitude:  r.LatCol,
			Longitude: r.LongCol,
			Code:      r.CodeCol,
			HeaderRow: r.Header,
			Delimiter: r.Sep,
		},
	}
	if r.Error != "" {
		return d, nil
	}
	var fc table.FeatureCollection
	if err := sonic.ConfigStd.Unmarshal(r.Data, &fc); err != nil {
		return nil, apperr.Wrap(apperr.DecodeFailed, "dataset "+name+" data is not a feature collection", err)
	}
	d.Table = table.FromFeatureCollection(&fc, r.Columns)
	d.Columns = append([]string(nil), d.Table.Columns...)
	return d, nil
}

// MarshalRecord encodes d as a Record.
func MarshalRecord(d *Dataset) ([]byte, error) {
	r, err := ToRecord(d)
	if err != nil {
		return nil, err
	}
	return sonic.ConfigStd.Marshal(r)
}

// UnmarshalRecord decodes a Record stored under name.
func UnmarshalRecord(name string, b []byte) (*Dataset, error) {
	var r Record
	if err := sonic.ConfigStd.Unmarshal(b, &r); err != nil {
		return nil, apperr.Wrap(apperr.DecodeFailed, "dataset record "+name+" is not valid JSON", err)
	}
	return FromRecord(name, &r)
}
