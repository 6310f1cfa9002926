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

package store

import (
	"context"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

// validateOpenAPISchema parses and validates an OpenAPI document at ingest
// time, so a malformed schema is rejected before it ever reaches the
// outbound adapter.
func validateOpenAPISchema(doc string) error {
	loader := openapi3.NewLoader()
	schema, err := loader.LoadFromData([]byte(doc))
	if err != nil {
		return fmt.Errorf("parse openapi document: %w", err)
	}
	if err := schema.Validate(context.Background()); err != nil {
		return fmt.Errorf("validate openapi document: %w", err)
	}
	return nil
}
