package models

import (
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
)

var ErrNotDataURI = errors.New("content is not a base64 data URI")

// DataURI is a file embedded as `data:<mime>[;name=<file>];base64,<payload>`.
type DataURI struct {
	MIMEType string
	Name     string
	Data     []byte
}

func (d *DataURI) IsImage() bool {
	return strings.HasPrefix(d.MIMEType, "image/")
}

// Filename falls back to a generic name when the uploader sent none.
func (d *DataURI) Filename() string {
	if d.Name == "" {
		return "secret-file"
	}
	return d.Name
}

// ParseDataURI accepts the shape browsers produce with readAsDataURL,
// optionally carrying a name parameter. Unknown parameters are ignored.
func ParseDataURI(s string) (*DataURI, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, ErrNotDataURI
	}

	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, ErrNotDataURI
	}

	params := strings.Split(header, ";")
	if len(params) < 2 || params[len(params)-1] != "base64" {
		return nil, ErrNotDataURI
	}

	d := &DataURI{MIMEType: params[0]}
	if d.MIMEType == "" {
		d.MIMEType = "application/octet-stream"
	}

	for _, p := range params[1 : len(params)-1] {
		key, val, found := strings.Cut(p, "=")
		if !found || key != "name" {
			continue
		}
		if unescaped, err := url.PathUnescape(val); err == nil {
			val = unescaped
		}
		d.Name = val
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errors.Join(ErrNotDataURI, err)
	}
	d.Data = data

	return d, nil
}

func (d *DataURI) String() string {
	var b strings.Builder
	b.WriteString("data:")
	if d.MIMEType == "" {
		b.WriteString("application/octet-stream")
	} else {
		b.WriteString(d.MIMEType)
	}
	if d.Name != "" {
		b.WriteString(";name=")
		b.WriteString(url.PathEscape(d.Name))
	}
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(d.Data))
	return b.String()
}
