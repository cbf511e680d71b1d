package migrate

import (
	_ "embed"
)

// schemaDDL - DDL схемы content, применяется один раз при первичной загрузке
//
//go:embed schema.sql
var schemaDDL string

// SchemaDDL - возвращает скрипт создания схемы
func SchemaDDL() string {
	return schemaDDL
}
