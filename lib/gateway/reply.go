/*
 * RedisGate
 * Copyright (C) 2025  RedisGate Authors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package gateway

import (
	"fmt"
	"unicode/utf8"
)

// commandResult is the success envelope for every dispatched command.
type commandResult struct {
	Result interface{} `json:"result"`
}

// encodeReply converts a generic go-redis reply value into its JSON form:
//
//	nil reply            null
//	integer              number
//	bulk/status string   string, or null when the bytes are not valid UTF-8
//	boolean              true/false
//	double               number
//	array                array, recursive
//	map (RESP3)          object of encoded values
//
// The function is pure; it never fails, it degrades unrepresentable values
// to null or their printed form.
func encodeReply(v interface{}) interface{} {
	switch v := v.(type) {
	case nil:
		return nil
	case int64:
		return v
	case string:
		if !utf8.ValidString(v) {
			return nil
		}
		return v
	case []byte:
		if !utf8.Valid(v) {
			return nil
		}
		return string(v)
	case bool:
		return v
	case float64:
		return v
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = encodeReply(item)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			name, ok := encodeReply(key).(string)
			if !ok {
				name = fmt.Sprint(key)
			}
			out[name] = encodeReply(item)
		}
		return out
	default:
		return fmt.Sprint(v)
	}
}
