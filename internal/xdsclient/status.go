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

package xdsclient

import (
	"strings"

	"google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"
)

// statusFor builds the error_detail carried on a NACK. The format is
// "<name>: <reason>" for the first rejection in a batch, a stable and
// human-readable choice for an otherwise unspecified field.
func statusFor(msg string) *status.Status {
	return &status.Status{
		Code:    int32(codes.InvalidArgument),
		Message: msg,
	}
}

// streamErrorHint returns an operator hint for the stream failure modes that
// are hard to diagnose from the raw status alone, or "" when none applies.
func streamErrorHint(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "authentication failure"):
		return "check the control plane logs for more information"
	case strings.Contains(msg, "name resolution"):
		return "is the DNS server reachable?"
	}
	return ""
}
