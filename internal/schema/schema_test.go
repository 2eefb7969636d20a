package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ordersTable() TableSchema {
	return TableSchema{
		Name:        "orders",
		Description: "Stores customer orders including date, status, and total amount.",
		Columns: []Column{
			{Name: "order_id", Type: "INTEGER"},
			{Name: "customer_id", Type: "INTEGER"},
			{Name: "order_date", Type: "DATE"},
			{Name: "status", Type: "VARCHAR"},
			{Name: "total_amount", Type: "DECIMAL"},
		},
		PrimaryKeys: []string{"order_id"},
		ForeignKeys: []ForeignKey{
			{Column: "customer_id", ReferencesTable: "customers", ReferencesColumn: "customer_id"},
		},
	}
}

func TestRender(t *testing.T) {
	doc := Render(ordersTable())

	assert.Equal(t, "orders", doc.TableName)
	assert.True(t, strings.HasPrefix(doc.Text, "Table: orders | "))
	assert.Contains(t, doc.Text, "order_id (INTEGER, PK)")
	assert.Contains(t, doc.Text, "customer_id (INTEGER, FK→customers)")
	assert.Contains(t, doc.Text, "Relationships: customer_id references customers.customer_id")
}

func TestRenderNoRelationships(t *testing.T) {
	doc := Render(TableSchema{
		Name:        "products",
		Description: "Product catalog.",
		Columns:     []Column{{Name: "product_id", Type: "INTEGER"}},
		PrimaryKeys: []string{"product_id"},
	})

	assert.Contains(t, doc.Text, "Relationships: None")
}

func TestParseDocumentName(t *testing.T) {
	doc := Render(ordersTable())
	assert.Equal(t, "orders", ParseDocumentName(doc.Text))

	assert.Empty(t, ParseDocumentName("not a schema document"))
}

func TestParseForeignKeyTargets(t *testing.T) {
	doc := Render(ordersTable())
	assert.Equal(t, []string{"customers"}, ParseForeignKeyTargets(doc.Text))
}

func TestParseForeignKeyTargetsMultiple(t *testing.T) {
	doc := Render(TableSchema{
		Name: "order_items",
		Columns: []Column{
			{Name: "item_id", Type: "INTEGER"},
			{Name: "order_id", Type: "INTEGER"},
			{Name: "product_id", Type: "INTEGER"},
		},
		ForeignKeys: []ForeignKey{
			{Column: "order_id", ReferencesTable: "orders", ReferencesColumn: "order_id"},
			{Column: "product_id", ReferencesTable: "products", ReferencesColumn: "product_id"},
		},
	})

	assert.Equal(t, []string{"orders", "products"}, ParseForeignKeyTargets(doc.Text))
}

func TestParseForeignKeyTargetsNone(t *testing.T) {
	doc := Render(TableSchema{
		Name:    "customers",
		Columns: []Column{{Name: "customer_id", Type: "INTEGER"}},
	})

	assert.Empty(t, ParseForeignKeyTargets(doc.Text))
}

func TestRenderParseRoundTrip(t *testing.T) {
	// Render and parse must agree on the marker format: the expander depends
	// on recovering exactly the FK targets that Render wrote.
	tables, err := LoadDescriptors(strings.NewReader(ExampleDescriptors))
	require.NoError(t, err)

	for _, table := range tables {
		doc := Render(table)
		assert.Equal(t, table.Name, ParseDocumentName(doc.Text))

		want := make([]string, 0, len(table.ForeignKeys))
		seen := make(map[string]bool)

		for _, fk := range table.ForeignKeys {
			if !seen[fk.ReferencesTable] {
				seen[fk.ReferencesTable] = true
				want = append(want, fk.ReferencesTable)
			}
		}

		if len(want) == 0 {
			assert.Empty(t, ParseForeignKeyTargets(doc.Text))
		} else {
			assert.Equal(t, want, ParseForeignKeyTargets(doc.Text))
		}
	}
}

func TestTableNames(t *testing.T) {
	docs := []Document{
		Render(ordersTable()),
		{Text: "Table: Customers | Description: x | Columns: c (INTEGER) | Relationships: None"},
	}

	names := TableNames(docs)
	assert.Contains(t, names, "orders")
	assert.Contains(t, names, "customers") // normalized to lowercase
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		table   TableSchema
		wantErr string
	}{
		{
			name:    "missing name",
			table:   TableSchema{Columns: []Column{{Name: "id"}}},
			wantErr: "no name",
		},
		{
			name:    "no columns",
			table:   TableSchema{Name: "empty"},
			wantErr: "no columns",
		},
		{
			name: "unknown primary key",
			table: TableSchema{
				Name:        "orders",
				Columns:     []Column{{Name: "order_id"}},
				PrimaryKeys: []string{"id"},
			},
			wantErr: "unknown primary key",
		},
		{
			name: "foreign key on unknown column",
			table: TableSchema{
				Name:        "orders",
				Columns:     []Column{{Name: "order_id"}},
				ForeignKeys: []ForeignKey{{Column: "customer_id", ReferencesTable: "customers"}},
			},
			wantErr: "unknown column",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.table.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	assert.NoError(t, ordersTable().Validate())
}

func TestLoadDescriptors(t *testing.T) {
	tables, err := LoadDescriptors(strings.NewReader(ExampleDescriptors))
	require.NoError(t, err)
	require.Len(t, tables, 5)

	assert.Equal(t, "customers", tables[0].Name)
	assert.Equal(t, "payments", tables[4].Name)
	require.Len(t, tables[3].ForeignKeys, 2)
	assert.Equal(t, "orders", tables[3].ForeignKeys[0].ReferencesTable)
}

func TestLoadDescriptorsDuplicate(t *testing.T) {
	yaml := `tables:
  - table_name: customers
    columns: [{name: id, type: INTEGER}]
  - table_name: customers
    columns: [{name: id, type: INTEGER}]
`

	_, err := LoadDescriptors(strings.NewReader(yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate table descriptor")
}

func TestLoadDescriptorsEmpty(t *testing.T) {
	_, err := LoadDescriptors(strings.NewReader("tables: []"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no tables")
}
