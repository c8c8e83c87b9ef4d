package domain

import "time"

// ImportSession tracks one uploaded roster workbook.
type ImportSession struct {
	ID         string
	Filename   string
	SheetName  string
	FilePath   string
	ImportedAt time.Time
	TotalRows  int
	Status     string
}
