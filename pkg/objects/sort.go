// SPDX-License-Identifier: Apache-2.0

package objects

import "sort"

func sortStrings(s []string) {
	sort.Strings(s)
}
