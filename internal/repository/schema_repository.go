package repository

import (
	"context"
	"visamate-go/internal/model"

	"gorm.io/gorm"
)

// SchemaRepository 定义了对 information_schema 的元数据读取接口。
type SchemaRepository interface {
	ExtractSchema(ctx context.Context) (map[string][]model.ColumnInfo, error)
	GetTableInfo(ctx context.Context, tableName string) ([]model.TableColumn, error)
}

type schemaRepository struct {
	db *gorm.DB
}

// NewSchemaRepository 创建一个新的 SchemaRepository 实例。
func NewSchemaRepository(db *gorm.DB) SchemaRepository {
	return &schemaRepository{db: db}
}

type schemaRow struct {
	TableName              string  `gorm:"column:table_name"`
	ColumnName             string  `gorm:"column:column_name"`
	DataType               string  `gorm:"column:data_type"`
	IsNullable             string  `gorm:"column:is_nullable"`
	ColumnDefault          *string `gorm:"column:column_default"`
	CharacterMaximumLength *int    `gorm:"column:character_maximum_length"`
}

// ExtractSchema 枚举 public schema 下全部基础表的列信息，
// 列顺序按 ordinal_position（声明顺序），结果稳定可重现。
func (r *schemaRepository) ExtractSchema(ctx context.Context) (map[string][]model.ColumnInfo, error) {
	const query = `
		SELECT
			t.table_name,
			c.column_name,
			c.data_type,
			c.is_nullable,
			c.column_default,
			c.character_maximum_length
		FROM
			information_schema.tables t
			JOIN information_schema.columns c
				ON t.table_name = c.table_name AND t.table_schema = c.table_schema
		WHERE
			t.table_schema = 'public'
			AND t.table_type = 'BASE TABLE'
		ORDER BY
			t.table_name, c.ordinal_position`

	var rows []schemaRow
	if err := r.db.WithContext(ctx).Raw(query).Scan(&rows).Error; err != nil {
		return nil, err
	}

	schema := make(map[string][]model.ColumnInfo)
	for _, row := range rows {
		schema[row.TableName] = append(schema[row.TableName], model.ColumnInfo{
			Name:      row.ColumnName,
			Type:      row.DataType,
			Nullable:  row.IsNullable == "YES",
			Default:   row.ColumnDefault,
			MaxLength: row.CharacterMaximumLength,
		})
	}
	return schema, nil
}

// GetTableInfo 返回单表的列信息并附带约束类型注解。
// 表不存在时返回空列表，由上层决定语义。
func (r *schemaRepository) GetTableInfo(ctx context.Context, tableName string) ([]model.TableColumn, error) {
	const query = `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable,
			c.column_default,
			c.character_maximum_length,
			tc.constraint_type
		FROM
			information_schema.columns c
			LEFT JOIN information_schema.key_column_usage kcu
				ON c.table_name = kcu.table_name
				AND c.column_name = kcu.column_name
			LEFT JOIN information_schema.table_constraints tc
				ON kcu.constraint_name = tc.constraint_name
		WHERE
			c.table_name = ?
			AND c.table_schema = 'public'
		ORDER BY
			c.ordinal_position`

	var columns []model.TableColumn
	if err := r.db.WithContext(ctx).Raw(query, tableName).Scan(&columns).Error; err != nil {
		return nil, err
	}
	return columns, nil
}
