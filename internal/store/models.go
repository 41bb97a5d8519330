package store

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"sales-dashboard/internal/models"
)

// saleRow is the storage shape of a record. The *_key columns hold folded
// copies of the text the filters compare against. The *_sort columns hold
// binary collation keys so text orders case-insensitively by the root locale
// under a plain byte comparison on every driver. Seq is the load position and
// the final tie-break of every ordering.
type saleRow struct {
	Seq             int64   `gorm:"column:seq;primaryKey;autoIncrement:false"`
	TransactionID   string  `gorm:"column:transaction_id;index"`
	SaleDate        *string `gorm:"column:sale_date;type:varchar(10);index"`
	CustomerID      string  `gorm:"column:customer_id"`
	CustomerIDKey   string  `gorm:"column:customer_id_key;index"`
	CustomerName    string  `gorm:"column:customer_name"`
	CustomerNameKey string  `gorm:"column:customer_name_key;index"`
	PhoneNumber     string  `gorm:"column:phone_number"`
	Gender          string  `gorm:"column:gender"`
	GenderKey       string  `gorm:"column:gender_key;index"`
	Age             int     `gorm:"column:age;not null;default:0;index"`
	CustomerRegion  string  `gorm:"column:customer_region"`
	RegionKey       string  `gorm:"column:region_key;index"`
	CustomerType    string  `gorm:"column:customer_type"`
	ProductID       string  `gorm:"column:product_id"`
	ProductName     string  `gorm:"column:product_name"`
	ProductNameKey  string  `gorm:"column:product_name_key;index"`
	Brand           string  `gorm:"column:brand"`
	BrandKey        string  `gorm:"column:brand_key;index"`
	Category        string  `gorm:"column:product_category"`
	CategoryKey     string  `gorm:"column:category_key;index"`
	// Tags is stored comma-wrapped (",a,b,") so one LIKE matches a whole tag.
	Tags            string          `gorm:"column:tags"`
	Quantity        int             `gorm:"column:quantity;not null;default:0"`
	UnitPrice       decimal.Decimal `gorm:"column:unit_price;type:decimal(12,2)"`
	Discount        decimal.Decimal `gorm:"column:discount;type:decimal(12,2)"`
	TotalAmount     decimal.Decimal `gorm:"column:total_amount;type:decimal(12,2)"`
	Profit          decimal.Decimal `gorm:"column:profit;type:decimal(12,2)"`
	PaymentMethod   string          `gorm:"column:payment_method"`
	PaymentKey      string          `gorm:"column:payment_key;index"`
	EmployeeName    string          `gorm:"column:employee_name"`
	EmployeeNameKey string          `gorm:"column:employee_name_key;index"`

	TransactionIDSort []byte `gorm:"column:transaction_id_sort"`
	CustomerIDSort    []byte `gorm:"column:customer_id_sort"`
	CustomerNameSort  []byte `gorm:"column:customer_name_sort;index"`
	PhoneNumberSort   []byte `gorm:"column:phone_number_sort"`
	GenderSort        []byte `gorm:"column:gender_sort"`
	RegionSort        []byte `gorm:"column:region_sort"`
	CustomerTypeSort  []byte `gorm:"column:customer_type_sort"`
	ProductIDSort     []byte `gorm:"column:product_id_sort"`
	ProductNameSort   []byte `gorm:"column:product_name_sort"`
	BrandSort         []byte `gorm:"column:brand_sort"`
	CategorySort      []byte `gorm:"column:category_sort"`
	PaymentSort       []byte `gorm:"column:payment_sort"`
	EmployeeNameSort  []byte `gorm:"column:employee_name_sort"`
}

func (saleRow) TableName() string { return "sales" }

// datasetRow is the single-row table describing the loaded snapshot.
type datasetRow struct {
	ID          int       `gorm:"column:id;primaryKey;autoIncrement:false"`
	Version     int64     `gorm:"column:version"`
	RecordCount int64     `gorm:"column:record_count"`
	Source      string    `gorm:"column:source"`
	LoadedAt    time.Time `gorm:"column:loaded_at"`
}

func (datasetRow) TableName() string { return "dataset" }

const datasetRowID = 1

// sortKeyer builds collation keys. A Collator keeps internal buffers, so
// each Replace uses its own.
type sortKeyer struct {
	col *collate.Collator
	buf collate.Buffer
}

func newSortKeyer() *sortKeyer {
	return &sortKeyer{col: collate.New(language.Und, collate.IgnoreCase)}
}

// key returns nil for empty text, which keeps missing values detectable.
func (k *sortKeyer) key(s string) []byte {
	if s == "" {
		return nil
	}
	key := k.col.KeyFromString(&k.buf, s)
	out := make([]byte, len(key))
	copy(out, key)
	k.buf.Reset()
	return out
}

func newSaleRow(seq int64, r models.SalesRecord, keys *sortKeyer) saleRow {
	row := saleRow{
		Seq:             seq,
		TransactionID:   r.TransactionID,
		CustomerID:      r.CustomerID,
		CustomerIDKey:   models.Fold(r.CustomerID),
		CustomerName:    r.CustomerName,
		CustomerNameKey: models.Fold(r.CustomerName),
		PhoneNumber:     r.PhoneNumber,
		Gender:          r.Gender,
		GenderKey:       models.Fold(r.Gender),
		Age:             r.Age,
		CustomerRegion:  r.CustomerRegion,
		RegionKey:       models.Fold(r.CustomerRegion),
		CustomerType:    r.CustomerType,
		ProductID:       r.ProductID,
		ProductName:     r.ProductName,
		ProductNameKey:  models.Fold(r.ProductName),
		Brand:           r.Brand,
		BrandKey:        models.Fold(r.Brand),
		Category:        r.Category,
		CategoryKey:     models.Fold(r.Category),
		Tags:            encodeTags(r.Tags),
		Quantity:        r.Quantity,
		UnitPrice:       r.UnitPrice,
		Discount:        r.Discount,
		TotalAmount:     r.TotalAmount,
		Profit:          r.Profit,
		PaymentMethod:   r.PaymentMethod,
		PaymentKey:      models.Fold(r.PaymentMethod),
		EmployeeName:    r.EmployeeName,
		EmployeeNameKey: models.Fold(r.EmployeeName),

		TransactionIDSort: keys.key(r.TransactionID),
		CustomerIDSort:    keys.key(r.CustomerID),
		CustomerNameSort:  keys.key(r.CustomerName),
		PhoneNumberSort:   keys.key(r.PhoneNumber),
		GenderSort:        keys.key(r.Gender),
		RegionSort:        keys.key(r.CustomerRegion),
		CustomerTypeSort:  keys.key(r.CustomerType),
		ProductIDSort:     keys.key(r.ProductID),
		ProductNameSort:   keys.key(r.ProductName),
		BrandSort:         keys.key(r.Brand),
		CategorySort:      keys.key(r.Category),
		PaymentSort:       keys.key(r.PaymentMethod),
		EmployeeNameSort:  keys.key(r.EmployeeName),
	}
	if r.Date != nil {
		d := r.Date.UTC().Format(models.DateLayout)
		row.SaleDate = &d
	}
	return row
}

func encodeTags(tags []string) string {
	var kept []string
	for _, t := range tags {
		if t = models.Fold(t); t != "" && !strings.Contains(t, ",") {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return "," + strings.Join(kept, ",") + ","
}

func decodeTags(stored string) []string {
	var tags []string
	for _, t := range strings.Split(strings.Trim(stored, ","), ",") {
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func parseSaleDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}
