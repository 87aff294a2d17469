// Package basket assembles the ordered list of item drafts a requester
// submits, checked against a stock snapshot read once when the basket opens.
package basket

import (
	"context"
	"iter"
	"slices"
	"strings"

	"github.com/angelmondragon/stockroom-backend/internal/requests"
	"github.com/angelmondragon/stockroom-backend/internal/stock"
	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
)

// NewProductDescription marks drafts for products not yet in stock.
const NewProductDescription = "Solicitud de compra/registro"

// suggestNewMinLen is the shortest term that may prompt registering a new product.
const suggestNewMinLen = 3

// Builder holds a stock snapshot and the drafts added so far. It is not safe
// for concurrent use.
type Builder struct {
	lines  []models.StockLine
	byCode map[string]models.StockLine
	items  []requests.ItemDraft
}

// New opens a basket over the given snapshot.
func New(snapshot []models.StockLine) *Builder {
	lines := slices.Clone(snapshot)
	byCode := make(map[string]models.StockLine, len(lines))
	for _, line := range lines {
		byCode[line.Code] = line
	}
	return &Builder{lines: lines, byCode: byCode}
}

// Load reads a fresh snapshot and opens a basket over it.
func Load(ctx context.Context, reader stock.Reader) (*Builder, error) {
	if reader == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stock reader required")
	}
	lines, err := reader.Snapshot(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock snapshot")
	}
	return New(lines), nil
}

// Search yields the snapshot lines whose code or description contains term,
// ignoring case. A blank term yields nothing.
func (b *Builder) Search(term string) iter.Seq[models.StockLine] {
	return Search(b.lines, term)
}

// Search filters lines lazily. Each range over the result restarts the scan.
func Search(lines []models.StockLine, term string) iter.Seq[models.StockLine] {
	needle := strings.ToLower(strings.TrimSpace(term))
	return func(yield func(models.StockLine) bool) {
		if needle == "" {
			return
		}
		for _, line := range lines {
			if !matches(line, needle) {
				continue
			}
			if !yield(line) {
				return
			}
		}
	}
}

func matches(line models.StockLine, needle string) bool {
	return strings.Contains(strings.ToLower(line.Code), needle) ||
		strings.Contains(strings.ToLower(line.Description), needle)
}

// SuggestNew reports whether the requester should be offered to register
// term as a new product.
func (b *Builder) SuggestNew(term string) bool {
	if len([]rune(strings.TrimSpace(term))) < suggestNewMinLen {
		return false
	}
	for range b.Search(term) {
		return false
	}
	return true
}

// Lookup returns the snapshot line for code.
func (b *Builder) Lookup(code string) (models.StockLine, bool) {
	line, ok := b.byCode[strings.TrimSpace(code)]
	return line, ok
}

// AddFromStock appends a draft for an existing stock line. The quantity must
// be positive and no larger than the snapshot stock.
func (b *Builder) AddFromStock(line models.StockLine, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
			WithDetails(map[string]any{"code": line.Code, "quantity": qty})
	}
	if qty > line.Quantity {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds available stock").
			WithDetails(map[string]any{"code": line.Code, "quantity": qty, "available": line.Quantity})
	}
	code := line.Code
	b.items = append(b.items, requests.ItemDraft{
		ProductCode:       &code,
		ProductName:       line.Description,
		QuantityRequested: qty,
	})
	return nil
}

// AddNew appends a draft for a product that is not in stock yet.
func (b *Builder) AddNew(name string, qty int) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if qty < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
			WithDetails(map[string]any{"quantity": qty})
	}
	description := NewProductDescription
	b.items = append(b.items, requests.ItemDraft{
		ProductName:       name,
		QuantityRequested: qty,
		IsNewProduct:      true,
		Description:       &description,
	})
	return nil
}

// Remove drops the draft at index and keeps the rest in order.
func (b *Builder) Remove(index int) error {
	if index < 0 || index >= len(b.items) {
		return pkgerrors.New(pkgerrors.CodeValidation, "basket index out of range").
			WithDetails(map[string]any{"index": index, "size": len(b.items)})
	}
	b.items = slices.Delete(b.items, index, index+1)
	return nil
}

// Items returns a copy of the drafts in insertion order.
func (b *Builder) Items() []requests.ItemDraft {
	return slices.Clone(b.items)
}

// Lines returns a copy of the stock snapshot the basket validates against.
func (b *Builder) Lines() []models.StockLine {
	return slices.Clone(b.lines)
}

// Len reports how many drafts the basket holds.
func (b *Builder) Len() int {
	return len(b.items)
}
