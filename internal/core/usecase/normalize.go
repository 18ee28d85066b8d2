package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kirillkom/receipt-assistant/internal/core/domain"
	"github.com/kirillkom/receipt-assistant/internal/core/ports"
)

// NormalizeUseCase turns raw OCR fragments into a candidate order with a
// single oracle call. It never retries.
type NormalizeUseCase struct {
	generator ports.TextGenerator
}

func NewNormalizeUseCase(generator ports.TextGenerator) *NormalizeUseCase {
	return &NormalizeUseCase{generator: generator}
}

func (uc *NormalizeUseCase) Normalize(
	ctx context.Context,
	fragments []string,
	catalogNames []string,
) (domain.CandidateOrder, error) {
	completion, err := uc.generator.Generate(ctx, buildNormalizationPrompt(fragments, catalogNames))
	if err != nil {
		return domain.CandidateOrder{}, fmt.Errorf("generate candidate order: %w", err)
	}
	return parseCandidateOrder(completion)
}

func parseCandidateOrder(completion string) (domain.CandidateOrder, error) {
	raw, err := extractJSONObject(completion)
	if err != nil {
		return domain.CandidateOrder{}, err
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return domain.CandidateOrder{}, domain.WrapError(domain.ErrOracleParse, "decode oracle json", err)
	}
	return candidateOrderFromDoc(doc), nil
}

// extractJSONObject returns the text between the first '{' and the last '}'.
func extractJSONObject(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return "", domain.WrapError(domain.ErrOracleParse, "extract oracle json", errors.New("no JSON object found in the response"))
	}
	return raw[start : end+1], nil
}

// candidateOrderFromDoc applies the field presence rules: absent items are an
// empty list, absent or malformed timestamps are nil, prices are always zero.
func candidateOrderFromDoc(doc map[string]any) domain.CandidateOrder {
	order := domain.CandidateOrder{Items: []domain.CandidateItem{}}

	if ts, ok := doc["timestamp"].(string); ok {
		order.Timestamp = &ts
	}

	rawItems, _ := doc["items"].([]any)
	for _, rawItem := range rawItems {
		fields, ok := rawItem.(map[string]any)
		if !ok {
			continue
		}
		name, _ := fields["product_name"].(string)
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		order.Items = append(order.Items, domain.CandidateItem{
			ProductName: name,
			Quantity:    coerceQuantity(fields["quantity"]),
		})
	}
	return order
}

func coerceQuantity(v any) int {
	var q float64
	switch typed := v.(type) {
	case float64:
		q = typed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return 0
		}
		q = parsed
	default:
		return 0
	}
	if math.IsNaN(q) || q <= 0 || q > math.MaxInt32 {
		return 0
	}
	return int(q)
}
