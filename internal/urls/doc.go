// Package urls holds the documentation links printed by rokuscan's
// troubleshooting output, so they can be updated in one place.
//
//	fmt.Printf("Enable developer mode: %s\n", urls.DeveloperSetup)
package urls
