package models

import "time"

// HistoryRow is one test record of the scanned board.
type HistoryRow struct {
	Serial      string    `json:"serial"`
	Station     string    `json:"station"`
	Result      string    `json:"result"` // "Passed" or anything else for a failure
	DateTime    time.Time `json:"date_time"`
	LogFileName string    `json:"log_file_name"`
}

// SiblingRow is one test record of another board on the same panel.
type SiblingRow struct {
	Result      string `json:"result"`
	LogFileName string `json:"log_file_name"`
}

// ScanRecord is a journal entry written after each scan.
type ScanRecord struct {
	ScanID      string    `json:"scan_id" bson:"scan_id"`
	InstanceID  string    `json:"instance_id" bson:"instance_id"`
	Identifier  string    `json:"identifier" bson:"identifier"`
	ProductName string    `json:"product_name" bson:"product_name"`
	PanelSize   int       `json:"panel_size" bson:"panel_size"`
	Attempts    int       `json:"attempts" bson:"attempts"`
	Error       string    `json:"error,omitempty" bson:"error,omitempty"`
	Superseded  bool      `json:"superseded,omitempty" bson:"superseded,omitempty"` // a newer scan replaced this one
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	ExpiresAt   time.Time `json:"expires_at" bson:"expires_at"`
}
