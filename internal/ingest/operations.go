package ingest

import "github.com/nhle/audit-mailer/internal/model"

// Operations spreadsheet headers.
const (
	ColClientID      = "Código Cliente"
	ColClientName    = "Nome do Cliente"
	ColStructure     = "Estrutura"
	ColAsset         = "Ativo"
	ColAllocationPct = "% PL"
	ColAdvisorCode   = "Assessor da Operação"
	ColLeaderCode    = "Assessor do Cliente"
)

// OperationColumns must all be present in the operations header.
var OperationColumns = []string{
	ColClientID,
	ColClientName,
	ColStructure,
	ColAsset,
	ColAllocationPct,
	ColAdvisorCode,
	ColLeaderCode,
}

// LoadOperations reads the operations sheet into dispatch items, in row
// order. Items are not validated here; empty cells stay empty.
func LoadOperations(path, sheet string) ([]model.DispatchItem, error) {
	t, err := ReadTable(path, sheet)
	if err != nil {
		return nil, err
	}
	if err := t.Require(OperationColumns...); err != nil {
		return nil, err
	}

	items := make([]model.DispatchItem, 0, len(t.Rows))
	for _, row := range t.Rows {
		items = append(items, ItemFromRow(row))
	}
	return items, nil
}

// ItemFromRow maps an operations row onto a DispatchItem.
func ItemFromRow(row RawRow) model.DispatchItem {
	return model.DispatchItem{
		Position:      row.Position,
		ClientID:      row.Get(ColClientID),
		ClientName:    row.Get(ColClientName),
		Structure:     row.Get(ColStructure),
		Asset:         row.Get(ColAsset),
		AllocationPct: row.Get(ColAllocationPct),
		AdvisorCode:   row.Get(ColAdvisorCode),
		LeaderCode:    row.Get(ColLeaderCode),
	}
}
