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
	"crypto/sha512"
	"crypto/subtle"
)

// ChainHash computes the verify_method=1 link: SHA-512(prevHash ||
// fragmentBytes). Fragment 0's prevHash is the firmware's
// MetadataSignature, so corrupting or reordering any fragment in the
// image changes every hash after it.
func ChainHash(prevHash, fragmentBytes []byte) [64]byte {
	h := sha512.New()
	h.Write(prevHash)
	h.Write(fragmentBytes)
	var out [64]byte
	copy(out[:], h.Sum(nil))
	return out
}

// VerifyChainLink reports whether wantHash matches the hash chain
// link computed from prevHash and fragmentBytes.
func VerifyChainLink(prevHash, fragmentBytes []byte, wantHash []byte) bool {
	got := ChainHash(prevHash, fragmentBytes)
	return subtle.ConstantTimeCompare(got[:], wantHash) == 1
}
