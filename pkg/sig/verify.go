/**
 * Licensed to the Apache Software Foundation (ASF) under one
 * or more contributor license agreements.  See the NOTICE file
 * distributed with this work for additional information
 * regarding copyright ownership.  The ASF licenses this file
 * to you under the Apache License, Version 2.0 (the
 * "License"); you may not use this file except in compliance
 * with the License.  You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package sig

import (
	"crypto/ed25519"
)

// VerifyMetadata checks a metadata record's own signature: a small,
// always-resident message, so the single-shot verifier from
// crypto/ed25519 is the right tool -- no need for the
// streaming verifier used for fragment bodies.
func VerifyMetadata(publicKey ed25519.PublicKey, signedBytes, signature []byte) bool {
	return ed25519.Verify(publicKey, signedBytes, signature)
}

// Sign produces a signature over message with privateKey, used by the
// host-side signing tool rather than the device.
func Sign(privateKey ed25519.PrivateKey, message []byte) []byte {
	return ed25519.Sign(privateKey, message)
}
