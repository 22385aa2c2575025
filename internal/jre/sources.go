package jre

import "fmt"

// DefaultFamily is the runtime distribution installed when none is present.
const DefaultFamily = "temurin"

// bundledRuntimes maps family -> GOOS -> GOARCH to a pinned archive URL.
// Pinned builds keep installs reproducible; platforms missing from the
// table fall back to the Adoptium latest-binary API, which redirects
// straight to an archive.
var bundledRuntimes = map[string]map[string]map[string]string{
	"temurin": {
		"linux": {
			"amd64": "https://github.com/adoptium/temurin21-binaries/releases/download/jdk-21.0.4%2B7/OpenJDK21U-jdk_x64_linux_hotspot_21.0.4_7.tar.gz",
			"arm64": "https://github.com/adoptium/temurin21-binaries/releases/download/jdk-21.0.4%2B7/OpenJDK21U-jdk_aarch64_linux_hotspot_21.0.4_7.tar.gz",
		},
		"darwin": {
			"amd64": "https://github.com/adoptium/temurin21-binaries/releases/download/jdk-21.0.4%2B7/OpenJDK21U-jdk_x64_mac_hotspot_21.0.4_7.tar.gz",
			"arm64": "https://github.com/adoptium/temurin21-binaries/releases/download/jdk-21.0.4%2B7/OpenJDK21U-jdk_aarch64_mac_hotspot_21.0.4_7.tar.gz",
		},
		"windows": {
			"amd64": "https://github.com/adoptium/temurin21-binaries/releases/download/jdk-21.0.4%2B7/OpenJDK21U-jdk_x64_windows_hotspot_21.0.4_7.zip",
		},
	},
}

// RuntimeURL resolves the archive URL for a family/OS/arch combination,
// preferring the bundled table and falling back to the Adoptium API.
func RuntimeURL(family, goos, goarch string) (string, error) {
	if byOS, ok := bundledRuntimes[family]; ok {
		if byArch, ok := byOS[goos]; ok {
			if url, ok := byArch[goarch]; ok {
				return url, nil
			}
		}
	}
	return adoptiumURL(goos, goarch)
}

func adoptiumURL(goos, goarch string) (string, error) {
	osName := map[string]string{"linux": "linux", "darwin": "mac", "windows": "windows"}[goos]
	archName := map[string]string{"amd64": "x64", "arm64": "aarch64"}[goarch]
	if osName == "" || archName == "" {
		return "", fmt.Errorf("no runtime available for %s/%s", goos, goarch)
	}
	return fmt.Sprintf("https://api.adoptium.net/v3/binary/latest/21/ga/%s/%s/jdk/hotspot/normal/eclipse",
		osName, archName), nil
}
