package urls

// DeveloperSetup explains how to put a Roku device into developer mode.
// Devices without it are hidden unless include_non_developer_devices is set.
const DeveloperSetup = "https://developer.roku.com/docs/developer-program/getting-started/developer-setup.md"

// ExternalControlAPI documents ECP, including SSDP discovery on port 1900
// and the /query/device-info endpoint on port 8060.
const ExternalControlAPI = "https://developer.roku.com/docs/developer-program/dev-tools/external-control-api.md"

// NetworkAccess covers the "Control by mobile apps" setting, which must
// allow network access for ECP queries to succeed.
const NetworkAccess = "https://support.roku.com/article/208755158"
