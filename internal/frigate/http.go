package frigate

import (
	"context"
	"encoding/json"
	"fmt"
)

// maxJSONSize bounds JSON API responses.
const maxJSONSize = 8 << 20

// doGetJSON performs a GET request and unmarshals the JSON response into result.
func doGetJSON[T any](ctx context.Context, c *Client, endpoint string, result *T) error {
	body, err := c.get(ctx, endpoint, maxJSONSize)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("could not unmarshal response: %w", err)
	}
	return nil
}
