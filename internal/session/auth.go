/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package session

import "context"

// bearerTokenKey is the context key the Router attaches the caller's bearer
// token under when the session identity carries one, for targets configured
// with passthrough backend auth.
type bearerTokenKey struct{}

// WithBearerToken attaches the inbound caller's bearer token to ctx so an
// outbound adapter configured for passthrough auth can forward it unchanged.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerTokenKey{}, token)
}

// BearerTokenFrom extracts a bearer token previously attached with
// WithBearerToken.
func BearerTokenFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(bearerTokenKey{}).(string)
	return v, ok
}
