package schema

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// descriptorFile is the on-disk YAML shape consumed by the index command
type descriptorFile struct {
	Tables []TableSchema `yaml:"tables"`
}

// LoadDescriptors reads table descriptors from a YAML stream
func LoadDescriptors(r io.Reader) ([]TableSchema, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema descriptors: %w", err)
	}

	var file descriptorFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse schema descriptors: %w", err)
	}

	if len(file.Tables) == 0 {
		return nil, fmt.Errorf("schema descriptor file contains no tables")
	}

	seen := make(map[string]bool, len(file.Tables))

	for _, t := range file.Tables {
		if err := t.Validate(); err != nil {
			return nil, err
		}

		if seen[t.Name] {
			return nil, fmt.Errorf("duplicate table descriptor: %q", t.Name)
		}

		seen[t.Name] = true
	}

	return file.Tables, nil
}

// LoadDescriptorsFile reads table descriptors from a YAML file on disk
func LoadDescriptorsFile(path string) ([]TableSchema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open schema descriptor file: %w", err)
	}
	defer f.Close()

	return LoadDescriptors(f)
}

// ExampleDescriptors is a small retail schema useful for trying the pipeline
// end to end before indexing a real database.
const ExampleDescriptors = `tables:
  - table_name: customers
    description: Stores information about customers including their contact details and creation date.
    columns:
      - {name: customer_id, type: INTEGER, nullable: false}
      - {name: name, type: VARCHAR, nullable: false}
      - {name: email, type: VARCHAR, nullable: false}
      - {name: country, type: VARCHAR, nullable: true}
      - {name: created_at, type: TIMESTAMP, nullable: false}
    primary_keys: [customer_id]
    foreign_keys: []
  - table_name: orders
    description: Stores customer orders including date, status, and total amount.
    columns:
      - {name: order_id, type: INTEGER, nullable: false}
      - {name: customer_id, type: INTEGER, nullable: false}
      - {name: order_date, type: DATE, nullable: false}
      - {name: status, type: VARCHAR, nullable: false}
      - {name: total_amount, type: DECIMAL, nullable: false}
    primary_keys: [order_id]
    foreign_keys:
      - {column: customer_id, references_table: customers, references_column: customer_id}
  - table_name: products
    description: Stores product catalog details including price and stock.
    columns:
      - {name: product_id, type: INTEGER, nullable: false}
      - {name: product_name, type: VARCHAR, nullable: false}
      - {name: category, type: VARCHAR, nullable: false}
      - {name: price, type: DECIMAL, nullable: false}
      - {name: stock_quantity, type: INTEGER, nullable: false}
    primary_keys: [product_id]
    foreign_keys: []
  - table_name: order_items
    description: Stores individual items within an order, linking orders to products.
    columns:
      - {name: item_id, type: INTEGER, nullable: false}
      - {name: order_id, type: INTEGER, nullable: false}
      - {name: product_id, type: INTEGER, nullable: false}
      - {name: quantity, type: INTEGER, nullable: false}
      - {name: unit_price, type: DECIMAL, nullable: false}
    primary_keys: [item_id]
    foreign_keys:
      - {column: order_id, references_table: orders, references_column: order_id}
      - {column: product_id, references_table: products, references_column: product_id}
  - table_name: payments
    description: Stores payment transactions for orders.
    columns:
      - {name: payment_id, type: INTEGER, nullable: false}
      - {name: order_id, type: INTEGER, nullable: false}
      - {name: payment_date, type: DATE, nullable: false}
      - {name: amount, type: DECIMAL, nullable: false}
      - {name: method, type: VARCHAR, nullable: false}
    primary_keys: [payment_id]
    foreign_keys:
      - {column: order_id, references_table: orders, references_column: order_id}
`
