/*
 * Copyright 2025 StructHealth Analytics.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package stream

const (
	actionJoin  = "join"
	actionLeave = "leave"
)

// controlMessage is the outbound join/leave notification for an asset
// channel. Deliveries are fire-and-forget; the server never acknowledges.
type controlMessage struct {
	Action   string `json:"action"`
	AssetID  string `json:"assetId"`
	ClientID string `json:"clientId"`
}
