package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const sampleCSV = "\ufeffTransaction ID,Date,Customer ID,Customer Name,Phone Number,Gender,Age,Customer Region,Customer Type,Product ID,Product Name,Brand,Product Category,Tags,Quantity,Unit Price,Discount,Total Amount,Profit,Payment Method,Employee Name\n" +
	"T1,2023-05-01,C1,Neha Yadav,9876543210,Female,28,North,Loyal,P1,Laptop,Acme,Electronics,\"Gadgets, Sale ,gadgets\",2,500.50,10,1001,120.25,UPI,Ravi\n" +
	"T2,not a date,C2,Arjun,,Male,-4,South,New,P2,Shirt,Tee,Clothing,,abc,,,,,Cash,\n" +
	"\n" +
	"T3,2023-05-03T10:00:00Z,C3,Priya,,Female,41,East,Returning,P3,Lamp,Glow,Home,decor,1,30,0,30,5,Card,Asha\n"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReadCSV_MapsColumns(t *testing.T) {
	records, err := ReadCSV(context.Background(), strings.NewReader(sampleCSV), Options{})
	require.NoError(t, err)
	require.Len(t, records, 3)

	first := records[0]
	assert.Equal(t, "T1", first.TransactionID)
	require.NotNil(t, first.Date)
	assert.Equal(t, "2023-05-01", first.Date.Format("2006-01-02"))
	assert.Equal(t, "Neha Yadav", first.CustomerName)
	assert.Equal(t, 28, first.Age)
	assert.Equal(t, []string{"gadgets", "sale"}, first.Tags)
	assert.Equal(t, 2, first.Quantity)
	assert.Equal(t, "500.5", first.UnitPrice.String())
	assert.Equal(t, "1001", first.TotalAmount.String())
	assert.Equal(t, "120.25", first.Profit.String())
	assert.Equal(t, "UPI", first.PaymentMethod)
	assert.Equal(t, "Ravi", first.EmployeeName)
}

func TestReadCSV_MissingValuesDefault(t *testing.T) {
	records, err := ReadCSV(context.Background(), strings.NewReader(sampleCSV), Options{})
	require.NoError(t, err)

	second := records[1]
	assert.Nil(t, second.Date)
	assert.Equal(t, 0, second.Age)
	assert.Equal(t, 0, second.Quantity)
	assert.True(t, second.TotalAmount.IsZero())
	assert.True(t, second.Profit.IsZero())
	assert.Empty(t, second.Tags)
	assert.Equal(t, "", second.EmployeeName)

	third := records[2]
	require.NotNil(t, third.Date)
	assert.Equal(t, "2023-05-03", third.Date.Format("2006-01-02"))
}

func TestReadCSV_ProfitFallsBackToFinalAmount(t *testing.T) {
	src := "transaction_id,final_amount\nT1,42.50\n"
	records, err := ReadCSV(context.Background(), strings.NewReader(src), Options{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "42.5", records[0].Profit.String())
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"no transaction id column", "Date,Customer Name\n2023-01-01,A\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(context.Background(), strings.NewReader(tt.src), Options{})
			assert.Error(t, err)
		})
	}
}

func TestReadCSV_KeepsOrderAcrossBatches(t *testing.T) {
	var b strings.Builder
	b.WriteString("Transaction ID,Quantity\n")
	for i := 0; i < 1003; i++ {
		fmt.Fprintf(&b, "T%04d,%d\n", i, i)
	}

	records, err := ReadCSV(context.Background(), strings.NewReader(b.String()), Options{BatchSize: 10, Workers: 8})
	require.NoError(t, err)
	require.Len(t, records, 1003)
	for i, r := range records {
		if r.Quantity != i {
			t.Fatalf("record %d out of order: got quantity %d", i, r.Quantity)
		}
	}
}

func TestReadCSV_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ReadCSV(ctx, strings.NewReader(sampleCSV), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2023-05-01", "2023-05-01"},
		{"2023-05-01T23:30:00Z", "2023-05-01"},
		{"05/01/2023", "2023-05-01"},
		{"2023/05/01", "2023-05-01"},
		{"45047", "2023-05-01"},
		{"", ""},
		{"soon", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := parseDate(tt.in)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Format("2006-01-02"))
		})
	}
}

func TestNormalizeColumn(t *testing.T) {
	assert.Equal(t, "transaction id", normalizeColumn("\ufeffTransaction  ID"))
	assert.Equal(t, "customer region", normalizeColumn(" customer_region "))
}

func writeWorkbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestReadXLSX(t *testing.T) {
	buf := writeWorkbook(t, [][]any{
		{"Transaction ID", "Date", "Customer Name", "Quantity", "Total Amount", "Tags"},
		{"X1", "2024-02-29", "Meera", 3, 75.5, "Fresh,Organic"},
		{"X2", "", "Kabir", 1, 10, ""},
	})

	records, err := ReadXLSX(context.Background(), buf, Options{})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "X1", records[0].TransactionID)
	require.NotNil(t, records[0].Date)
	assert.Equal(t, "2024-02-29", records[0].Date.Format("2006-01-02"))
	assert.Equal(t, 3, records[0].Quantity)
	assert.Equal(t, "75.5", records[0].TotalAmount.String())
	assert.Equal(t, []string{"fresh", "organic"}, records[0].Tags)
	assert.Nil(t, records[1].Date)
}

func TestReadXLSX_NotAWorkbook(t *testing.T) {
	_, err := ReadXLSX(context.Background(), strings.NewReader("plain text"), Options{})
	assert.Error(t, err)
}

type fakeS3 struct {
	objects map[string]string
	calls   []string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.calls = append(f.calls, key)
	body, ok := f.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestLoader_LocalFiles(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "sales.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(sampleCSV), 0o600))

	xlsxPath := filepath.Join(dir, "sales.XLSX")
	buf := writeWorkbook(t, [][]any{{"Transaction ID"}, {"X1"}})
	require.NoError(t, os.WriteFile(xlsxPath, buf.Bytes(), 0o600))

	l := NewLoader(Options{}, discardLogger())

	records, err := l.Load(context.Background(), csvPath)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	records, err = l.Load(context.Background(), xlsxPath)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "X1", records[0].TransactionID)

	_, err = l.Load(context.Background(), filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)

	_, err = l.Load(context.Background(), "  ")
	assert.Error(t, err)
}

func TestLoader_S3(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{"exports/2024/sales.csv": sampleCSV}}
	l := NewLoader(Options{}, discardLogger(), WithS3(fake))

	records, err := l.Load(context.Background(), "s3://exports/2024/sales.csv")
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, []string{"exports/2024/sales.csv"}, fake.calls)

	_, err = l.Load(context.Background(), "s3://exports/other.csv")
	assert.Error(t, err)

	_, err = l.Load(context.Background(), "s3://bucket-only")
	assert.Error(t, err)
}

func TestLoader_S3WithoutClient(t *testing.T) {
	l := NewLoader(Options{}, discardLogger())
	_, err := l.Load(context.Background(), "s3://exports/sales.csv")
	assert.Error(t, err)
}
