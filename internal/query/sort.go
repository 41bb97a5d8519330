package query

import "strings"

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Canonical sort fields, named as they appear in the response.
const (
	FieldDate          = "Date"
	FieldQuantity      = "Quantity"
	FieldCustomerName  = "Customer_Name"
	FieldTotalSales    = "Total_Sales"
	FieldProfit        = "Profit"
	FieldTransactionID = "Transaction_ID"
	FieldCustomerID    = "Customer_ID"
	FieldCategory      = "Product_Category"
	FieldAge           = "Age"
	FieldRegion        = "Customer_Region"
	FieldProductName   = "Product_Name"
	FieldDiscount      = "Discount"
	FieldBrand         = "Brand"
	FieldGender        = "Gender"
	FieldPaymentMethod = "Payment_Method"
	FieldEmployeeName  = "Employee_Name"
	FieldUnitPrice     = "Unit_Price"
	FieldCustomerType  = "Customer_Type"
	FieldProductID     = "Product_ID"
	FieldPhoneNumber   = "Phone_Number"
)

// Sort is a resolved ordering. Field is canonical when the input was a known
// alias and passed through unchanged otherwise.
type Sort struct {
	Field     string
	Direction Direction
}

// DefaultSort is newest first.
var DefaultSort = Sort{Field: FieldDate, Direction: Desc}

var sortAliases = map[string]string{
	"date":             FieldDate,
	"quantity":         FieldQuantity,
	"customername":     FieldCustomerName,
	"customer_name":    FieldCustomerName,
	"customer name":    FieldCustomerName,
	"amount":           FieldTotalSales,
	"total_sales":      FieldTotalSales,
	"totalamount":      FieldTotalSales,
	"total amount":     FieldTotalSales,
	"total_amount":     FieldTotalSales,
	"profit":           FieldProfit,
	"transaction_id":   FieldTransactionID,
	"transactionid":    FieldTransactionID,
	"transaction id":   FieldTransactionID,
	"customer_id":      FieldCustomerID,
	"customerid":       FieldCustomerID,
	"customer id":      FieldCustomerID,
	"product_category": FieldCategory,
	"productcategory":  FieldCategory,
	"product category": FieldCategory,
	"category":         FieldCategory,
	"age":              FieldAge,
	"customer_region":  FieldRegion,
	"customer region":  FieldRegion,
	"region":           FieldRegion,
	"product_name":     FieldProductName,
	"product name":     FieldProductName,
	"productname":      FieldProductName,
	"discount":         FieldDiscount,
	"brand":            FieldBrand,
	"gender":           FieldGender,
	"payment_method":   FieldPaymentMethod,
	"paymentmethod":    FieldPaymentMethod,
	"payment method":   FieldPaymentMethod,
	"payment":          FieldPaymentMethod,
	"employee_name":    FieldEmployeeName,
	"employeename":     FieldEmployeeName,
	"employee name":    FieldEmployeeName,
	"unit_price":       FieldUnitPrice,
	"unitprice":        FieldUnitPrice,
	"unit price":       FieldUnitPrice,
	"price":            FieldUnitPrice,
	"customer_type":    FieldCustomerType,
	"customertype":     FieldCustomerType,
	"customer type":    FieldCustomerType,
	"product_id":       FieldProductID,
	"productid":        FieldProductID,
	"product id":       FieldProductID,
	"phone_number":     FieldPhoneNumber,
	"phonenumber":      FieldPhoneNumber,
	"phone number":     FieldPhoneNumber,
	"phone":            FieldPhoneNumber,
}

// ResolveSort maps a user-facing sort key to its canonical field. An empty key
// selects the default field; an unknown key is kept as given.
func ResolveSort(sortBy, sortOrder string) Sort {
	s := Sort{Field: DefaultSort.Field, Direction: DefaultSort.Direction}

	if key := strings.TrimSpace(sortBy); key != "" {
		if canonical, ok := sortAliases[strings.ToLower(key)]; ok {
			s.Field = canonical
		} else {
			s.Field = key
		}
	}

	if strings.EqualFold(strings.TrimSpace(sortOrder), string(Asc)) {
		s.Direction = Asc
	}
	return s
}
