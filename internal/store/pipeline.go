package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"sales-dashboard/internal/models"
	"sales-dashboard/internal/query"
)

// QueryResult is one page of matching records plus the summary over every
// match.
type QueryResult struct {
	Records []models.SalesRecord
	Summary models.Summary
}

// The filter is evaluated once into matched; summary and page both read from
// it, and the join returns the summary on every row (or on a single row of
// NULL page columns when the page is empty).
const pipelineSQL = `WITH matched AS (
	SELECT * FROM sales WHERE %[1]s
),
summary AS (
	SELECT
		COUNT(*) AS sum_total,
		COALESCE(SUM(quantity), 0) AS sum_units,
		COALESCE(SUM(total_amount), 0) AS sum_amount,
		COALESCE(SUM(discount), 0) AS sum_discount,
		COALESCE(SUM(CASE WHEN total_amount > 0 THEN 1 ELSE 0 END), 0) AS sum_amount_count,
		COALESCE(SUM(CASE WHEN discount > 0 THEN 1 ELSE 0 END), 0) AS sum_discount_count
	FROM matched
),
page AS (
	SELECT matched.*, ROW_NUMBER() OVER (ORDER BY %[2]s) AS page_rank
	FROM matched
	ORDER BY %[2]s
	LIMIT ? OFFSET ?
)
SELECT
	summary.sum_total, summary.sum_units, summary.sum_amount, summary.sum_discount,
	summary.sum_amount_count, summary.sum_discount_count,
	page.seq, page.transaction_id, page.sale_date, page.customer_id, page.customer_name,
	page.phone_number, page.gender, page.age, page.customer_region, page.customer_type,
	page.product_id, page.product_name, page.brand, page.product_category, page.tags,
	page.quantity, page.unit_price, page.discount, page.total_amount, page.profit,
	page.payment_method, page.employee_name
FROM summary
LEFT JOIN page ON 1 = 1
ORDER BY page.page_rank`

// Query runs the listing pipeline for one request in a single round trip.
func (s *Store) Query(ctx context.Context, f query.FilterSpec, srt query.Sort, w query.Window) (QueryResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	where, args := buildWhere(f)
	stmt := fmt.Sprintf(pipelineSQL, where, orderBy(srt))
	args = append(args, w.Limit(), w.Offset())

	rows, err := s.db.WithContext(ctx).Raw(stmt, args...).Rows()
	if err != nil {
		return QueryResult{}, classify(ctx, err)
	}
	defer rows.Close()

	result := QueryResult{Records: make([]models.SalesRecord, 0, w.Limit())}
	for rows.Next() {
		var (
			summary models.Summary
			sale    scannedSale
		)
		dest := append([]any{
			&summary.Total,
			&summary.TotalUnits,
			&summary.TotalAmount,
			&summary.TotalDiscount,
			&summary.NumSalesForAmount,
			&summary.NumSalesForDiscount,
		}, sale.targets()...)

		if err := rows.Scan(dest...); err != nil {
			return QueryResult{}, classify(ctx, fmt.Errorf("scanning pipeline row: %w", err))
		}

		result.Summary = summary
		if sale.Seq.Valid {
			result.Records = append(result.Records, sale.record())
		}
	}
	if err := rows.Err(); err != nil {
		return QueryResult{}, classify(ctx, err)
	}

	result.Summary.TotalAmount = result.Summary.TotalAmount.Round(2)
	result.Summary.TotalDiscount = result.Summary.TotalDiscount.Round(2)
	return result, nil
}

// scannedSale receives the nullable page columns of a pipeline row.
type scannedSale struct {
	Seq            sql.NullInt64
	TransactionID  sql.NullString
	SaleDate       sql.NullString
	CustomerID     sql.NullString
	CustomerName   sql.NullString
	PhoneNumber    sql.NullString
	Gender         sql.NullString
	Age            sql.NullInt64
	CustomerRegion sql.NullString
	CustomerType   sql.NullString
	ProductID      sql.NullString
	ProductName    sql.NullString
	Brand          sql.NullString
	Category       sql.NullString
	Tags           sql.NullString
	Quantity       sql.NullInt64
	UnitPrice      decimal.NullDecimal
	Discount       decimal.NullDecimal
	TotalAmount    decimal.NullDecimal
	Profit         decimal.NullDecimal
	PaymentMethod  sql.NullString
	EmployeeName   sql.NullString
}

func (s *scannedSale) targets() []any {
	return []any{
		&s.Seq, &s.TransactionID, &s.SaleDate, &s.CustomerID, &s.CustomerName,
		&s.PhoneNumber, &s.Gender, &s.Age, &s.CustomerRegion, &s.CustomerType,
		&s.ProductID, &s.ProductName, &s.Brand, &s.Category, &s.Tags,
		&s.Quantity, &s.UnitPrice, &s.Discount, &s.TotalAmount, &s.Profit,
		&s.PaymentMethod, &s.EmployeeName,
	}
}

func (s *scannedSale) record() models.SalesRecord {
	return models.SalesRecord{
		TransactionID:  s.TransactionID.String,
		Date:           parseSaleDate(s.SaleDate.String),
		CustomerID:     s.CustomerID.String,
		CustomerName:   s.CustomerName.String,
		PhoneNumber:    s.PhoneNumber.String,
		Gender:         s.Gender.String,
		Age:            int(s.Age.Int64),
		CustomerRegion: s.CustomerRegion.String,
		CustomerType:   s.CustomerType.String,
		ProductID:      s.ProductID.String,
		ProductName:    s.ProductName.String,
		Brand:          s.Brand.String,
		Category:       s.Category.String,
		Tags:           decodeTags(s.Tags.String),
		Quantity:       int(s.Quantity.Int64),
		UnitPrice:      s.UnitPrice.Decimal,
		Discount:       s.Discount.Decimal,
		TotalAmount:    s.TotalAmount.Decimal,
		Profit:         s.Profit.Decimal,
		PaymentMethod:  s.PaymentMethod.String,
		EmployeeName:   s.EmployeeName.String,
	}
}

// searchColumns are matched by case-insensitive prefix.
var searchColumns = []string{
	"customer_name_key",
	"product_name_key",
	"brand_key",
	"employee_name_key",
	"customer_id_key",
}

type whereBuilder struct {
	conds []string
	args  []any
}

func (b *whereBuilder) add(cond string, args ...any) {
	b.conds = append(b.conds, cond)
	b.args = append(b.args, args...)
}

func (b *whereBuilder) in(column string, values []string) {
	if len(values) == 0 {
		return
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	b.add(column+" IN ("+placeholders+")", args...)
}

// buildWhere compiles f into a SQL predicate with positional arguments.
// Every dimension left empty contributes nothing.
func buildWhere(f query.FilterSpec) (string, []any) {
	var b whereBuilder

	if f.Search != "" {
		pattern := escapeLike(f.Search) + "%"
		ors := make([]string, len(searchColumns))
		args := make([]any, len(searchColumns))
		for i, col := range searchColumns {
			ors[i] = col + ` LIKE ? ESCAPE '\'`
			args[i] = pattern
		}
		b.add("("+strings.Join(ors, " OR ")+")", args...)
	}

	b.in("region_key", f.Regions)
	b.in("gender_key", f.Genders)
	b.in("category_key", f.Categories)
	b.in("payment_key", f.PaymentMethods)

	if len(f.Tags) > 0 {
		ors := make([]string, len(f.Tags))
		args := make([]any, len(f.Tags))
		for i, tag := range f.Tags {
			ors[i] = `tags LIKE ? ESCAPE '\'`
			args[i] = "%," + escapeLike(tag) + ",%"
		}
		b.add("("+strings.Join(ors, " OR ")+")", args...)
	}

	addAge(&b, f.Age)

	if from, to := f.Date.Bounds(); from != nil || to != nil {
		if from != nil {
			b.add("sale_date >= ?", from.Format(models.DateLayout))
		}
		if to != nil {
			b.add("sale_date <= ?", to.Format(models.DateLayout))
		}
	}

	if len(b.conds) == 0 {
		return "1 = 1", nil
	}
	return strings.Join(b.conds, " AND "), b.args
}

func addAge(b *whereBuilder, age query.AgeFilter) {
	if age.Conflicting() {
		b.add("1 = 0")
		return
	}
	if age.Min != nil {
		b.add("age >= ?", *age.Min)
	}
	if age.Max != nil {
		b.add("age <= ?", *age.Max)
	}
	if len(age.Buckets) == 0 {
		return
	}

	ors := make([]string, 0, len(age.Buckets))
	var args []any
	for _, bucket := range age.Buckets {
		if bucket.Max == nil {
			ors = append(ors, "age >= ?")
			args = append(args, bucket.Min)
			continue
		}
		ors = append(ors, "(age >= ? AND age <= ?)")
		args = append(args, bucket.Min, *bucket.Max)
	}
	b.add("("+strings.Join(ors, " OR ")+")", args...)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

type sortKind int

const (
	sortText sortKind = iota
	sortNumber
	sortDate
)

type sortColumn struct {
	column string
	// key is the expression ordered on; defaults to column.
	key  string
	kind sortKind
}

var sortColumns = map[string]sortColumn{
	query.FieldDate:          {column: "sale_date", kind: sortDate},
	query.FieldQuantity:      {column: "quantity", kind: sortNumber},
	query.FieldTotalSales:    {column: "total_amount", kind: sortNumber},
	query.FieldProfit:        {column: "profit", kind: sortNumber},
	query.FieldAge:           {column: "age", kind: sortNumber},
	query.FieldDiscount:      {column: "discount", kind: sortNumber},
	query.FieldUnitPrice:     {column: "unit_price", kind: sortNumber},
	query.FieldCustomerName:  {column: "customer_name", key: "customer_name_sort"},
	query.FieldTransactionID: {column: "transaction_id", key: "transaction_id_sort"},
	query.FieldCustomerID:    {column: "customer_id", key: "customer_id_sort"},
	query.FieldCategory:      {column: "product_category", key: "category_sort"},
	query.FieldRegion:        {column: "customer_region", key: "region_sort"},
	query.FieldProductName:   {column: "product_name", key: "product_name_sort"},
	query.FieldBrand:         {column: "brand", key: "brand_sort"},
	query.FieldGender:        {column: "gender", key: "gender_sort"},
	query.FieldPaymentMethod: {column: "payment_method", key: "payment_sort"},
	query.FieldEmployeeName:  {column: "employee_name", key: "employee_name_sort"},
	query.FieldCustomerType:  {column: "customer_type", key: "customer_type_sort"},
	query.FieldProductID:     {column: "product_id", key: "product_id_sort"},
	query.FieldPhoneNumber:   {column: "phone_number", key: "phone_number_sort"},
}

// orderBy puts missing values last in both directions and always ends on
// seq, which makes every ordering total and stable with respect to load
// order. Fields that are not columns (Tags, or keys no record has) fall back
// to load order alone.
func orderBy(s query.Sort) string {
	col, ok := sortColumns[s.Field]
	if !ok {
		return "seq ASC"
	}

	missing := col.column + " IS NULL"
	if col.kind != sortNumber {
		missing = fmt.Sprintf("(%s IS NULL OR %s = '')", col.column, col.column)
	}
	key := col.key
	if key == "" {
		key = col.column
	}
	dir := "DESC"
	if s.Direction == query.Asc {
		dir = "ASC"
	}

	return fmt.Sprintf("CASE WHEN %s THEN 1 ELSE 0 END ASC, %s %s, seq ASC", missing, key, dir)
}
