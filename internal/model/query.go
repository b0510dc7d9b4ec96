package model

// QueryResult 是受保护查询的执行结果。失败时 Success 为 false，
// Error 携带描述信息；成功时 rows 不超过 1000 条，RowCount 始终是
// 真实行数。
type QueryResult struct {
	Success      bool                     `json:"success"`
	RowCount     int                      `json:"rowCount,omitempty"`
	Rows         []map[string]interface{} `json:"rows,omitempty"`
	WasTruncated bool                     `json:"wasTruncated,omitempty"`
	TruncatedAt  int                      `json:"truncatedAt,omitempty"`
	Error        string                   `json:"error,omitempty"`
}

// ColumnInfo 描述 schema 提取结果中的一列（按 ordinal_position 排序）。
type ColumnInfo struct {
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	Nullable  bool    `json:"nullable"`
	Default   *string `json:"default"`
	MaxLength *int    `json:"max_length"`
}

// SchemaResult 是整库 schema 提取的结果：表名到列描述列表的映射。
type SchemaResult struct {
	Success bool                    `json:"success"`
	Schema  map[string][]ColumnInfo `json:"schema,omitempty"`
	Error   string                  `json:"error,omitempty"`
}

// TableColumn 描述单表信息中的一列，附带约束类型注解。
type TableColumn struct {
	ColumnName             string  `json:"column_name"`
	DataType               string  `json:"data_type"`
	IsNullable             string  `json:"is_nullable"`
	ColumnDefault          *string `json:"column_default"`
	CharacterMaximumLength *int    `json:"character_maximum_length"`
	ConstraintType         *string `json:"constraint_type"`
}

// TableInfoResult 是单表信息查询的结果。未知表名返回成功但列表为空，
// 与"无行"的宽容语义保持一致，而不是 not-found 错误。
type TableInfoResult struct {
	Success bool          `json:"success"`
	Table   string        `json:"table,omitempty"`
	Columns []TableColumn `json:"columns"`
	Error   string        `json:"error,omitempty"`
}
