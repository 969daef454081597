package fotohost

import (
	"bytes"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMakeFilename(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	assert.Equal(t,
		"cat_(Foto-Hosting_2026-03-14_15-09-26).png",
		makeFilename("cat.png", now))

	assert.Equal(t,
		"my_photo_(Foto-Hosting_2026-03-14_15-09-26).jpg",
		makeFilename("my photo.jpg", now))

	// Path components and unsafe characters are stripped from the base.
	assert.Equal(t,
		"_etc_passwd_(Foto-Hosting_2026-03-14_15-09-26).gif",
		makeFilename("../<etc>passwd.gif", now))

	assert.Equal(t,
		"image_(Foto-Hosting_2026-03-14_15-09-26).webp",
		makeFilename(".webp", now))

	assert.Equal(t,
		"photo_(Foto-Hosting_2026-03-14_15-09-26).jpeg",
		makeFilename("photo.JPEG", now))
}

func TestAllowedFile(t *testing.T) {
	assert.True(t, allowedFile("cat.png"))
	assert.True(t, allowedFile("cat.JPG"))
	assert.True(t, allowedFile("archive.tar.gif"))
	assert.True(t, allowedFile("anim.webp"))

	assert.False(t, allowedFile("script.exe"))
	assert.False(t, allowedFile("noextension"))
	assert.False(t, allowedFile("doc.pdf"))
	assert.False(t, allowedFile(""))
}

func TestExtensionOf(t *testing.T) {
	assert.Equal(t, "png", extensionOf("cat.PNG"))
	assert.Equal(t, "jpg", extensionOf("a.b.jpg"))
	assert.Equal(t, "", extensionOf("none"))
}

func TestFolderFor(t *testing.T) {
	assert.Equal(t, "anonymous", folderFor(""))
	assert.Equal(t, "bob@mail.com", folderFor("bob@mail.com"))
}

func TestVerifyImage(t *testing.T) {
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	assert.NoError(t, png.Encode(&buf, img))

	assert.NoError(t, verifyImage(buf.Bytes(), "png"))

	garbage := []byte("definitely not an image")
	assert.Error(t, verifyImage(garbage, "png"))

	// webp has no stdlib decoder, the extension check is the gate there.
	assert.NoError(t, verifyImage(garbage, "webp"))
}
