package persistence

import (
	"strings"

	"github.com/reseller/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// PurchaseSortFields are the columns purchases may be ordered by
var PurchaseSortFields = map[string]bool{
	"id":            true,
	"created_at":    true,
	"updated_at":    true,
	"supplier":      true,
	"purchase_date": true,
}

// SaleSortFields are the columns sales may be ordered by
var SaleSortFields = map[string]bool{
	"id":            true,
	"created_at":    true,
	"updated_at":    true,
	"customer_name": true,
	"seller":        true,
}

// orderClause builds an ORDER BY from user input. Unknown columns fall back
// to created_at and anything but "asc" sorts descending. Ties break on id.
func orderClause(orderBy, orderDir string, allowed map[string]bool) string {
	field := strings.TrimSpace(orderBy)
	if !allowed[field] {
		field = "created_at"
	}
	dir := "DESC"
	if strings.EqualFold(strings.TrimSpace(orderDir), "asc") {
		dir = "ASC"
	}
	if field == "id" {
		return "id " + dir
	}
	return field + " " + dir + ", id " + dir
}

func applyPaging(query *gorm.DB, filter shared.Filter, allowed map[string]bool) *gorm.DB {
	return query.Order(orderClause(filter.OrderBy, filter.OrderDir, allowed)).
		Offset(filter.Offset()).
		Limit(filter.PageSize)
}
