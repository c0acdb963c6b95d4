package model

// AllModels returns every persisted model in migration order: parent tables
// before the tables that reference them.
func AllModels() []interface{} {
	return []interface{}{
		&Store{},
		&Employee{},
		&Customer{},
		&Product{},
		&Order{},
		&OrderItem{},
		&ReportTask{},
	}
}
