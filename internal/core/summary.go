package core

import "time"

// ActionMoneyCollection labels collection entries in the activity feed.
const ActionMoneyCollection = "Money Collection"

// CategoryAmount is the sum of collections sharing one raw category.
type CategoryAmount struct {
	Category string
	Amount   Money
	Count    int64
}

// BucketTotal is the sum of collections normalized into one bucket.
type BucketTotal struct {
	Bucket Bucket `json:"bucket"`
	Total  Money  `json:"total"`
	Count  int64  `json:"count"`
}

// MonthlyTotal is one point of the monthly collection series.
type MonthlyTotal struct {
	Year  int   `json:"year"`
	Month int   `json:"month"` // 1-12
	Total Money `json:"total"`
	Count int64 `json:"count"`
}

// Activity is a collection projected for the recent activity feed.
type Activity struct {
	ID          int64     `json:"id"`
	Action      string    `json:"action"`
	Amount      Money     `json:"amount"`
	Bucket      Bucket    `json:"bucket"`
	Category    string    `json:"category"`
	CollectedBy string    `json:"collectedBy"`
	Timestamp   time.Time `json:"timestamp"`
}

// BucketReport is the per-bucket report payload.
type BucketReport struct {
	Bucket      Bucket           `json:"bucket"`
	Total       Money            `json:"total"`
	Collections []FundCollection `json:"collections"`
}

// DashboardStats is the dashboard payload.
type DashboardStats struct {
	TotalUsers           int64          `json:"totalUsers"`
	TotalMembers         int64          `json:"totalMembers"`
	TotalMoneyCollected  Money          `json:"totalMoneyCollected"`
	MemorialFundTotal    Money          `json:"memorialFundTotal"`
	MonthlyDonationTotal Money          `json:"monthlyDonationTotal"`
	OtherTotal           Money          `json:"otherTotal"`
	MonthlySeries        []MonthlyTotal `json:"monthlySeries"`
	RecentCollections    []Activity     `json:"recentCollections"`
	GeneratedAt          time.Time      `json:"generatedAt"`
}
