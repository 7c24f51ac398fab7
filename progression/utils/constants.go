package utils

import "time"

const (
	ErrorColor   = 0xFF0000
	SuccessColor = 0x00FF00
	InfoColor    = 0x0099FF
	WarningColor = 0xFFAA00
	GoldColor    = 0xF1C40F

	// Pagination
	LeaderboardPerPage = 10
	QuestsPerPage      = 5

	CommandTimeout = 10 * time.Second
	SlowCommand    = 2 * time.Second
	EventTimeout   = 15 * time.Second
)
