package usecase

import (
	"encoding/json"
	"fmt"
	"strings"
)

func buildNormalizationPrompt(fragments []string, catalogNames []string) string {
	productContext := strings.Join(catalogNames, ",")
	if productContext == "" {
		productContext = "(no catalog available, keep product names as read)"
	}

	rendered, err := json.Marshal(fragments)
	if err != nil {
		rendered = []byte("[]")
	}

	return fmt.Sprintf(`You are an advanced AI assistant tasked with processing OCR text from a receipt. Your goal is to extract structured data with the following requirements:

Here is the list of products available in the store:
%s

Input:
%s

Tasks:
1. Correct any typos in product names.
2. Parse the information into a JSON object with the following structure:
   {
       "timestamp": "<timestamp in ISO 8601 format (YYYY-MM-DDTHH:MM:SS)>",
       "items": [
           {
               "product_name": "<corrected product name>",
               "quantity": <integer quantity>,
               "price_per_unit": 0,
               "total_price": 0
           }
       ],
       "total_price": 0
   }
3. Extract only the product name, quantity, and timestamp (if present) from the OCR text.
4. If a timestamp exists, convert it to ISO 8601 format (YYYY-MM-DDTHH:MM:SS). If no timestamp is found, set "timestamp" to null.
5. Leave "price_per_unit" and "total_price" as 0 for all items.
6. If quantity is a large number, change it to 0.

Additional Notes:
- Use double quotes (") for all property names and string values to ensure the response is valid JSON.
- Ensure all numbers (e.g., quantity) are represented as integers, not strings.
- Return only the JSON response, strictly adhering to the specified format.
- Do not include any additional text or comments in the output.

Example Output:
{
    "timestamp": "2024-11-23T12:41:30",
    "items": [
        {"product_name": "Apple", "quantity": 2, "price_per_unit": 0, "total_price": 0},
        {"product_name": "Orange", "quantity": 1, "price_per_unit": 0, "total_price": 0}
    ],
    "total_price": 0
}
`, productContext, string(rendered))
}
