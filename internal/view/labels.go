package view

import "github.com/eryai/salesdash/internal/model"

// statusLabels はパイプラインステージの表示名。
var statusLabels = map[model.LeadStatus]string{
	model.LeadStatusNew:           "Nytt",
	model.LeadStatusContacted:     "Kontaktat",
	model.LeadStatusOpened:        "Öppnat",
	model.LeadStatusReplied:       "Svarat",
	model.LeadStatusInterested:    "Intresserad",
	model.LeadStatusDemoBooked:    "Demo bokad",
	model.LeadStatusCustomer:      "Kund",
	model.LeadStatusNotInterested: "Ej intresserad",
	model.LeadStatusInvalid:       "Ogiltigt",
}

// industryLabels は業種の表示名。
var industryLabels = map[string]string{
	"restaurant":  "Restaurang",
	"auto_repair": "Bilverkstad",
	"retail":      "Retail",
	"healthcare":  "Vård",
	"other":       "Övrigt",
}

// Option は<select>の選択肢。
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// StatusLabel はステージの表示名を返す。未知の値はそのまま返す。
func StatusLabel(s model.LeadStatus) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// IndustryLabel は業種の表示名を返す。未設定・未知の値は "-"。
func IndustryLabel(industry *string) string {
	if industry == nil {
		return "-"
	}
	if l, ok := industryLabels[*industry]; ok {
		return l
	}
	return "-"
}

// StatusOptions は全ステージを表示順に返す。
func StatusOptions() []Option {
	opts := make([]Option, 0, len(model.LeadStatuses))
	for _, s := range model.LeadStatuses {
		opts = append(opts, Option{Value: string(s), Label: StatusLabel(s)})
	}
	return opts
}

// IndustryOptions はフィルタで選べる業種を返す。
func IndustryOptions() []Option {
	opts := make([]Option, 0, len(model.Industries))
	for _, i := range model.Industries {
		opts = append(opts, Option{Value: i, Label: industryLabels[i]})
	}
	return opts
}
