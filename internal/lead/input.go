package lead

import (
	"bytes"
	"encoding/json"

	"github.com/eryai/salesdash/internal/model"
	"github.com/eryai/salesdash/internal/security"
)

// 作成時の既定値。statusはDB既定値（new）に任せる。
const (
	defaultCountry = "Sweden"
	defaultSource  = "manual"
)

// CreateInput はPOST /api/leadsのリクエストボディ。
type CreateInput struct {
	CompanyName     string          `json:"company_name"`
	Industry        *string         `json:"industry"`
	Website         *string         `json:"website"`
	Phone           *string         `json:"phone"`
	Email           *string         `json:"email"`
	ContactPerson   *string         `json:"contact_person"`
	ContactTitle    *string         `json:"contact_title"`
	Address         *string         `json:"address"`
	City            *string         `json:"city"`
	PostalCode      *string         `json:"postal_code"`
	Country         *string         `json:"country"`
	EmployeeCount   *int            `json:"employee_count"`
	RevenueEstimate *string         `json:"revenue_estimate"`
	SocialMedia     json.RawMessage `json:"social_media"`
	Notes           *string         `json:"notes"`
	LeadScore       *int            `json:"lead_score"`
	Source          *string         `json:"source"`
}

// toNewLead は入力を正規化し、既定値を補ったNewLeadに変換する。
func (in *CreateInput) toNewLead(san security.TextSanitizer) (*model.NewLead, error) {
	name := san.Sanitize(in.CompanyName)
	if name == "" {
		return nil, model.NewCompanyNameRequiredError()
	}

	social, err := objectOrNull("social_media", in.SocialMedia)
	if err != nil {
		return nil, err
	}

	text := func(p *string) *string { return cleanText(san, p) }

	nl := &model.NewLead{
		CompanyName:     name,
		Industry:        text(in.Industry),
		Website:         text(in.Website),
		Phone:           text(in.Phone),
		Email:           text(in.Email),
		ContactPerson:   text(in.ContactPerson),
		ContactTitle:    text(in.ContactTitle),
		Address:         text(in.Address),
		City:            text(in.City),
		PostalCode:      text(in.PostalCode),
		Country:         defaultCountry,
		RevenueEstimate: text(in.RevenueEstimate),
		SocialMedia:     social,
		Notes:           text(in.Notes),
		Source:          defaultSource,
	}
	if c := text(in.Country); c != nil {
		nl.Country = *c
	}
	if s := text(in.Source); s != nil {
		nl.Source = *s
	}
	// 0は未入力として扱う
	if in.EmployeeCount != nil && *in.EmployeeCount != 0 {
		n := *in.EmployeeCount
		nl.EmployeeCount = &n
	}
	if in.LeadScore != nil {
		nl.LeadScore = *in.LeadScore
	}
	return nl, nil
}

// cleanText は値を正規化し、空になった値はnilにする。
func cleanText(san security.TextSanitizer, p *string) *string {
	if p == nil {
		return nil
	}
	s := san.Sanitize(*p)
	if s == "" {
		return nil
	}
	return &s
}

// fieldKind は更新可能フィールドの値の型。
type fieldKind int

const (
	kindText        fieldKind = iota // 文字列またはnull
	kindRequiredText                 // 空でない文字列
	kindNullableInt                  // 整数またはnull
	kindInt                          // 整数
	kindObject                       // JSONオブジェクトまたはnull
	kindStatus                       // 既知のステージ
)

// patchFields はPATCHで受け付けるフィールドと値の型。
var patchFields = map[string]fieldKind{
	"company_name":     kindRequiredText,
	"industry":         kindText,
	"website":          kindText,
	"phone":            kindText,
	"email":            kindText,
	"contact_person":   kindText,
	"contact_title":    kindText,
	"address":          kindText,
	"city":             kindText,
	"postal_code":      kindText,
	"country":          kindText,
	"employee_count":   kindNullableInt,
	"revenue_estimate": kindText,
	"social_media":     kindObject,
	"notes":            kindText,
	"status":           kindStatus,
	"lead_score":       kindInt,
}

// BuildPatch はリクエストボディから許可リスト内のフィールドだけを取り出し、
// 値の型を検証したLeadPatchを返す。許可リスト外のキーは黙って捨てる。
// 残るフィールドがない場合はNO_VALID_FIELDSエラーを返す。
func BuildPatch(body map[string]json.RawMessage, san security.TextSanitizer) (model.LeadPatch, error) {
	patch := make(model.LeadPatch)
	for key, raw := range body {
		kind, ok := patchFields[key]
		if !ok {
			continue
		}
		v, err := decodeField(key, kind, raw, san)
		if err != nil {
			return nil, err
		}
		patch[key] = v
	}
	if len(patch) == 0 {
		return nil, model.NewNoValidFieldsError()
	}
	return patch, nil
}

func decodeField(key string, kind fieldKind, raw json.RawMessage, san security.TextSanitizer) (any, error) {
	null := isNull(raw)

	switch kind {
	case kindText:
		if null {
			return nil, nil
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, model.NewInvalidFieldError(key, "expected a string or null")
		}
		if p := cleanText(san, &s); p != nil {
			return *p, nil
		}
		return nil, nil

	case kindRequiredText:
		var s string
		if null || json.Unmarshal(raw, &s) != nil {
			return nil, model.NewInvalidFieldError(key, "expected a non-empty string")
		}
		s = san.Sanitize(s)
		if s == "" {
			return nil, model.NewInvalidFieldError(key, "expected a non-empty string")
		}
		return s, nil

	case kindNullableInt:
		if null {
			return nil, nil
		}
		var n int
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, model.NewInvalidFieldError(key, "expected an integer or null")
		}
		return n, nil

	case kindInt:
		var n int
		if null || json.Unmarshal(raw, &n) != nil {
			return nil, model.NewInvalidFieldError(key, "expected an integer")
		}
		return n, nil

	case kindObject:
		obj, err := objectOrNull(key, raw)
		if err != nil {
			return nil, err
		}
		if obj == nil {
			return nil, nil
		}
		return obj, nil

	case kindStatus:
		var s string
		if null || json.Unmarshal(raw, &s) != nil || !model.LeadStatus(s).Valid() {
			return nil, model.NewInvalidFieldError(key, "unknown status")
		}
		return s, nil
	}
	return nil, model.NewInvalidFieldError(key, "unsupported field")
}

// objectOrNull はJSONオブジェクトならそのまま、nullまたは未指定ならnilを返す。
func objectOrNull(key string, raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 || isNull(raw) {
		return nil, nil
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, model.NewInvalidFieldError(key, "expected an object or null")
	}
	return json.RawMessage(trimmed), nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
