package application

import "time"

var fixedStart = time.Date(2024, time.March, 30, 10, 0, 0, 0, time.UTC)
