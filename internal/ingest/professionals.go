package ingest

import (
	"errors"
	"fmt"

	"github.com/nhle/audit-mailer/internal/model"
)

// Professionals spreadsheet headers.
const (
	ColProfessionalCode = "Código Assessor"
	ColFullName         = "Nome Completo"
	ColEmail            = "E-mail"
	ColProfLeaderCode   = "Código do Líder"
)

// ErrUnknownCode is returned by Directory.Resolve for codes not in the
// professionals sheet.
var ErrUnknownCode = errors.New("professional code not found")

// Directory resolves professional codes to recipients.
type Directory struct {
	byCode map[string]model.Recipient
}

// NewDirectory indexes recipients by code. The first entry for a code wins.
func NewDirectory(recipients []model.Recipient) *Directory {
	d := &Directory{byCode: make(map[string]model.Recipient, len(recipients))}
	for _, r := range recipients {
		if r.Code == "" {
			continue
		}
		if _, ok := d.byCode[r.Code]; !ok {
			d.byCode[r.Code] = r
		}
	}
	return d
}

// LoadProfessionals reads the professionals sheet into a Directory.
func LoadProfessionals(path, sheet string) (*Directory, error) {
	t, err := ReadTable(path, sheet)
	if err != nil {
		return nil, err
	}
	if err := t.Require(ColProfessionalCode, ColEmail); err != nil {
		return nil, err
	}

	recipients := make([]model.Recipient, 0, len(t.Rows))
	for _, row := range t.Rows {
		recipients = append(recipients, model.Recipient{
			Code:       row.Get(ColProfessionalCode),
			Name:       row.Get(ColFullName),
			Email:      row.Get(ColEmail),
			LeaderCode: row.Get(ColProfLeaderCode),
		})
	}
	return NewDirectory(recipients), nil
}

// Resolve returns the recipient registered under code.
func (d *Directory) Resolve(code string) (model.Recipient, error) {
	r, ok := d.byCode[Normalize(code)]
	if !ok {
		return model.Recipient{}, fmt.Errorf("%w: %q", ErrUnknownCode, code)
	}
	return r, nil
}

// Len returns the number of distinct codes.
func (d *Directory) Len() int {
	return len(d.byCode)
}
