package main

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Digithought/quereus-sub006/catalog"
	"github.com/Digithought/quereus-sub006/types"
)

// schemaDocument is the YAML shape --schema reads: a flat list of tables,
// grounded on the teacher's schema package's Table/Column AST but
// re-expressed as data instead of parsed DDL text, since spec.md §1 leaves
// this repo with no SQL grammar to parse CREATE TABLE from.
type schemaDocument struct {
	Tables []tableDoc `yaml:"tables"`
}

type tableDoc struct {
	Name       string      `yaml:"name"`
	Schema     string      `yaml:"schema"`
	Module     string      `yaml:"module"`
	ModuleArgs []string    `yaml:"module_args"`
	PrimaryKey []string    `yaml:"primary_key"`
	Columns    []columnDoc `yaml:"columns"`
}

type columnDoc struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Nullable bool   `yaml:"nullable"`
}

// physicalFromName maps the small set of type names a schema YAML file
// names onto types.PhysicalType; unrecognized names are a load-time error
// rather than silently defaulting, the same KnownFields(true) strictness
// config.Parse applies to the engine's own YAML.
func physicalFromName(name string) (types.PhysicalType, error) {
	switch name {
	case "integer", "int":
		return types.PhysicalInteger, nil
	case "bigint":
		return types.PhysicalBigInt, nil
	case "real", "float", "double":
		return types.PhysicalReal, nil
	case "text", "string":
		return types.PhysicalText, nil
	case "blob", "bytes":
		return types.PhysicalBlob, nil
	case "boolean", "bool":
		return types.PhysicalBoolean, nil
	case "temporal", "timestamp", "datetime":
		return types.PhysicalTemporal, nil
	default:
		return 0, fmt.Errorf("quereusql: unknown column type %q", name)
	}
}

// loadSchemaDocument reads and decodes a schema YAML file into the
// catalog.TableSchema values main.go feeds to Database.CreateTable.
func loadSchemaDocument(path string) ([]*catalog.TableSchema, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("quereusql: reading schema file %q: %w", path, err)
	}
	var doc schemaDocument
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("quereusql: decoding schema file %q: %w", path, err)
	}

	schemas := make([]*catalog.TableSchema, len(doc.Tables))
	for i, td := range doc.Tables {
		schemaName := td.Schema
		if schemaName == "" {
			schemaName = "main"
		}
		cols := make([]catalog.ColumnDef, len(td.Columns))
		for j, cd := range td.Columns {
			physical, err := physicalFromName(cd.Type)
			if err != nil {
				return nil, err
			}
			cols[j] = catalog.ColumnDef{
				Name:     cd.Name,
				Logical:  types.LogicalType{Name: cd.Type, Physical: physical, Nullable: cd.Nullable},
				Nullable: cd.Nullable,
			}
		}
		schemas[i] = &catalog.TableSchema{
			Name:       td.Name,
			SchemaName: schemaName,
			Columns:    cols,
			PrimaryKey: td.PrimaryKey,
			ModuleName: td.Module,
			ModuleArgs: td.ModuleArgs,
		}
	}
	return schemas, nil
}
