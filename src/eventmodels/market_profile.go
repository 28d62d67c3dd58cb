package eventmodels

import "time"

type ProfileBin struct {
	PriceBinStart Price    `json:"price_bin_start"`
	PriceBinEnd   Price    `json:"price_bin_end"`
	Volume        Quantity `json:"volume,omitempty"`
	TimeSlotCount int      `json:"time_slot_count,omitempty"`
}

// VolumeProfile is the traded volume per price bin over a session window.
type VolumeProfile struct {
	OpenTimestamp  time.Time    `json:"open_timestamp"`
	CloseTimestamp time.Time    `json:"close_timestamp"`
	Poc            Price        `json:"poc"`
	ValueAreaHigh  Price        `json:"value_area_high"`
	ValueAreaLow   Price        `json:"value_area_low"`
	Bins           []ProfileBin `json:"bins"`
}

func (v VolumeProfile) PointInTime() time.Time {
	return v.CloseTimestamp
}

func (v VolumeProfile) OpenedAt() time.Time {
	return v.OpenTimestamp
}

// Tpo is a time-price-opportunity profile over a session window.
type Tpo struct {
	OpenTimestamp  time.Time    `json:"open_timestamp"`
	CloseTimestamp time.Time    `json:"close_timestamp"`
	Poc            Price        `json:"poc"`
	ValueAreaHigh  Price        `json:"value_area_high"`
	ValueAreaLow   Price        `json:"value_area_low"`
	Bins           []ProfileBin `json:"bins"`
}

func (t Tpo) PointInTime() time.Time {
	return t.CloseTimestamp
}

func (t Tpo) OpenedAt() time.Time {
	return t.OpenTimestamp
}
